package merge

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/thoreinstein/cfgmerge/internal/document"
	"github.com/thoreinstein/cfgmerge/internal/errors"
	"github.com/thoreinstein/cfgmerge/internal/logging"
)

// Recognized settings members.
const (
	KeyEnabledPlugins = "enabledPlugins"
	KeyPermissions    = "permissions"
	KeyHooks          = "hooks"
)

// PermissionLists are the permission arrays merged by set union, in report order.
var PermissionLists = []string{"allow", "deny", "ask"}

// Change labels.
const (
	LabelPlugins    = "Added plugins"
	LabelHookEvents = "Added hook events"
	LabelMCPServers = "Added MCP servers"
	labelPermPrefix = "Added permissions."
)

// Change records one top-level merge action that added something.
type Change struct {
	// Label describes the action, e.g. "Added plugins".
	Label string `json:"label" yaml:"label" toml:"label"`

	// Items are the member names or array values that were added.
	Items []string `json:"items" yaml:"items" toml:"items"`
}

// String renders the change as "<label>: item, item".
func (c Change) String() string {
	return c.Label + ": " + strings.Join(c.Items, ", ")
}

// Apply runs the policy for kind, mutating user in place.
// template is only read.
func Apply(ctx context.Context, kind document.Kind, template, user *document.Object) ([]Change, error) {
	switch kind {
	case document.KindMCP:
		return MCP(ctx, template, user)
	case document.KindSettings:
		return Settings(ctx, template, user)
	default:
		return nil, errors.Newf("unknown document kind %s", kind)
	}
}

// Settings merges enabledPlugins, permissions and hooks from template into user.
func Settings(ctx context.Context, template, user *document.Object) ([]Change, error) {
	var changes []Change

	c, err := unionMember(ctx, template, user, KeyEnabledPlugins, LabelPlugins)
	if err != nil {
		return nil, err
	}
	changes = appendChange(changes, c)

	permChanges, err := mergePermissions(ctx, template, user)
	if err != nil {
		return nil, err
	}
	changes = append(changes, permChanges...)

	c, err = unionMember(ctx, template, user, KeyHooks, LabelHookEvents)
	if err != nil {
		return nil, err
	}
	changes = appendChange(changes, c)

	return changes, nil
}

// MCP merges the mcpServers registry from template into user.
func MCP(ctx context.Context, template, user *document.Object) ([]Change, error) {
	c, err := unionMember(ctx, template, user, document.MCPServersKey, LabelMCPServers)
	if err != nil {
		return nil, err
	}
	return appendChange(nil, c), nil
}

// unionMember applies the object union policy to the top-level member key.
// A missing user member is created as an empty object first.
func unionMember(ctx context.Context, template, user *document.Object, key, label string) (*Change, error) {
	logger := logging.FromContext(ctx)

	tmplRaw, ok := template.Get(key)
	if !ok {
		return nil, nil
	}
	tmplObj, ok := document.DecodeObject(tmplRaw)
	if !ok {
		logger.Warn("skipping template member: not an object", "key", key, "type", document.TypeOf(tmplRaw).String())
		return nil, nil
	}

	userObj, present, ok := userObject(user, key)
	if !ok {
		logger.Warn("skipping user member: not an object", "key", key)
		return nil, nil
	}

	added := UnionObject(tmplObj, userObj)
	if present && len(added) == 0 {
		logger.Debug("member up to date", "key", key)
		return nil, nil
	}

	encoded, err := document.EncodeObject(userObj)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s", key)
	}
	user.Set(key, encoded)

	if len(added) == 0 {
		return nil, nil
	}
	logger.Debug("added members", "key", key, "names", added)
	return &Change{Label: label, Items: added}, nil
}

// mergePermissions applies the array union policy to permissions.allow/deny/ask.
func mergePermissions(ctx context.Context, template, user *document.Object) ([]Change, error) {
	logger := logging.FromContext(ctx)

	tmplRaw, ok := template.Get(KeyPermissions)
	if !ok {
		return nil, nil
	}
	tmplPerms, ok := document.DecodeObject(tmplRaw)
	if !ok {
		logger.Warn("skipping template member: not an object", "key", KeyPermissions)
		return nil, nil
	}

	userPerms, present, ok := userObject(user, KeyPermissions)
	if !ok {
		logger.Warn("skipping user member: not an object", "key", KeyPermissions)
		return nil, nil
	}
	dirty := !present

	var changes []Change
	for _, list := range PermissionLists {
		path := KeyPermissions + "." + list

		tmplListRaw, ok := tmplPerms.Get(list)
		if !ok {
			continue
		}
		tmplItems, ok := document.DecodeArray(tmplListRaw)
		if !ok {
			logger.Warn("skipping template member: not an array", "key", path)
			continue
		}

		var userItems []json.RawMessage
		userListRaw, listPresent := userPerms.Get(list)
		if listPresent {
			userItems, ok = document.DecodeArray(userListRaw)
			if !ok {
				logger.Warn("skipping user member: not an array", "key", path)
				continue
			}
		}

		merged, added := UnionArray(tmplItems, userItems)
		if listPresent && len(added) == 0 {
			continue
		}

		encoded, err := document.EncodeArray(merged)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding %s", path)
		}
		userPerms.Set(list, encoded)
		dirty = true

		if len(added) > 0 {
			items := make([]string, len(added))
			for i, item := range added {
				items[i] = document.Display(item)
			}
			logger.Debug("appended permissions", "key", path, "items", items)
			changes = append(changes, Change{Label: labelPermPrefix + list, Items: items})
		}
	}

	if dirty {
		encoded, err := document.EncodeObject(userPerms)
		if err != nil {
			return nil, errors.Wrap(err, "encoding permissions")
		}
		user.Set(KeyPermissions, encoded)
	}

	return changes, nil
}

// userObject returns the user's object member key, or a fresh empty object
// when the member is absent. ok is false when the member exists but is not
// an object; such members are never replaced.
func userObject(user *document.Object, key string) (obj *document.Object, present, ok bool) {
	raw, present := user.Get(key)
	if !present {
		return document.NewObject(), false, true
	}
	obj, ok = document.DecodeObject(raw)
	return obj, true, ok
}

// UnionObject copies every member of src that dst lacks into dst, in src
// order, and returns the names added. Existing dst members are not touched.
func UnionObject(src, dst *document.Object) []string {
	var added []string
	for pair := src.Oldest(); pair != nil; pair = pair.Next() {
		if _, exists := dst.Get(pair.Key); exists {
			continue
		}
		dst.Set(pair.Key, pair.Value)
		added = append(added, pair.Key)
	}
	return added
}

// UnionArray returns dst followed by every item of src not already present,
// compared by JSON value equality, along with the appended items.
func UnionArray(src, dst []json.RawMessage) (merged, added []json.RawMessage) {
	merged = append(make([]json.RawMessage, 0, len(dst)+len(src)), dst...)
	for _, item := range src {
		if contains(merged, item) {
			continue
		}
		merged = append(merged, item)
		added = append(added, item)
	}
	return merged, added
}

func contains(items []json.RawMessage, item json.RawMessage) bool {
	for _, existing := range items {
		if document.Equal(existing, item) {
			return true
		}
	}
	return false
}

func appendChange(changes []Change, c *Change) []Change {
	if c == nil {
		return changes
	}
	return append(changes, *c)
}
