// Package merge implements the additive merge policies used to fold a
// template configuration into a user configuration.
//
// Two policies exist, selected by the template's [document.Kind]:
//
//   - Settings: enabledPlugins and hooks receive an object union (members
//     missing from the user are copied from the template), and the
//     permissions allow/deny/ask arrays receive a set union (template items
//     not already present are appended in template order).
//   - MCP: mcpServers receives an object union.
//
// The merge is shallow on purpose. A member that already exists in the user
// document is never inspected further, even when the template's value for it
// differs: the user value always wins. Nothing is removed or reordered.
//
// Every policy reports what it added as a list of [Change] records. An empty
// list means the user document was left untouched.
package merge
