// Package document loads and serializes the JSON configuration files that
// cfgmerge reconciles.
//
// Objects are held as [Object], an ordered map from member name to the raw
// JSON of the member value. Untouched values are written back exactly as
// they were read (modulo indentation), and member order survives a round
// trip: existing members keep their position and new members are appended.
// Invalid UTF-8 inside strings is read as U+FFFD, as encoding/json does.
//
// A template is classified once, at load time, into a [Kind]. A template
// with a top-level "mcpServers" member is an MCP server registry; anything
// else is a settings file. The user file never takes part in classification.
package document
