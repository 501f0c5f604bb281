package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"unicode/utf8"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/thoreinstein/cfgmerge/internal/errors"
)

// MCPServersKey is the top-level member that marks an MCP server registry.
const MCPServersKey = "mcpServers"

// Kind identifies which merge policy a template is reconciled with.
type Kind int

const (
	// KindSettings is a settings file with enabledPlugins, permissions and hooks.
	KindSettings Kind = iota

	// KindMCP is an MCP server registry with a single mcpServers object.
	KindMCP
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindMCP:
		return "mcp"
	case KindSettings:
		return "settings"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Object is a JSON object whose members keep their source order.
type Object = orderedmap.OrderedMap[string, json.RawMessage]

// NewObject returns an empty Object.
func NewObject() *Object {
	return orderedmap.New[string, json.RawMessage]()
}

// Template is a parsed template document together with its classification.
// It is never mutated after Load.
type Template struct {
	Kind Kind
	Root *Object
}

// ParseTemplate parses template bytes and classifies them.
func ParseTemplate(data []byte) (*Template, error) {
	root, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return &Template{Kind: Classify(root), Root: root}, nil
}

// Classify reports the kind of a template root.
func Classify(root *Object) Kind {
	if _, ok := root.Get(MCPServersKey); ok {
		return KindMCP
	}
	return KindSettings
}

// Parse decodes data into an Object.
// It returns a *SyntaxError if data is not well-formed JSON or if the root
// value is not an object.
func Parse(data []byte) (*Object, error) {
	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, newSyntaxError(data, err)
	}
	if _, ok := probe.(map[string]any); !ok {
		return nil, &SyntaxError{Msg: fmt.Sprintf("top-level value is %s, not an object", describe(probe))}
	}

	// encoding/json accepts invalid UTF-8 inside strings but the ordered map
	// rejects it in keys. Substitute U+FFFD up front, as encoding/json does
	// when it decodes such a string.
	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, []byte("\uFFFD"))
	}

	root := NewObject()
	if err := json.Unmarshal(data, root); err != nil {
		return nil, newSyntaxError(data, err)
	}
	return root, nil
}

// Marshal encodes root with 2-space indentation and a trailing newline.
// Member order is preserved and HTML characters are not escaped.
func Marshal(root *Object) ([]byte, error) {
	var compact bytes.Buffer
	if err := writeObject(&compact, root); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return nil, errors.Wrap(err, "indenting JSON")
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// EncodeObject encodes obj as compact JSON suitable for storing in a parent Object.
func EncodeObject(obj *Object) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := writeObject(&buf, obj); err != nil {
		return nil, err
	}
	return json.RawMessage(buf.Bytes()), nil
}

// DecodeObject decodes raw into an Object. The second result is false when
// raw does not hold a JSON object.
func DecodeObject(raw json.RawMessage) (*Object, bool) {
	if TypeOf(raw) != TypeObject {
		return nil, false
	}
	obj := NewObject()
	if err := json.Unmarshal(raw, obj); err != nil {
		return nil, false
	}
	return obj, true
}

// DecodeArray splits raw into its elements. The second result is false when
// raw does not hold a JSON array.
func DecodeArray(raw json.RawMessage) ([]json.RawMessage, bool) {
	if TypeOf(raw) != TypeArray {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}

// EncodeArray encodes items as a compact JSON array.
func EncodeArray(items []json.RawMessage) (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := json.Compact(&buf, item); err != nil {
			return nil, errors.Wrapf(err, "encoding array element %d", i)
		}
	}
	buf.WriteByte(']')
	return json.RawMessage(buf.Bytes()), nil
}

// Equal reports whether a and b hold the same JSON value.
// Object member order and number formatting (1 vs 1.0) are ignored.
func Equal(a, b json.RawMessage) bool {
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}

// Display renders a JSON value for humans: strings without quotes,
// everything else as compact JSON.
func Display(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// Keys returns the member names of obj in order.
func Keys(obj *Object) []string {
	keys := make([]string, 0, obj.Len())
	for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

func writeObject(buf *bytes.Buffer, obj *Object) error {
	buf.WriteByte('{')
	first := true
	for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
		if !first {
			buf.WriteByte(',')
		}
		first = false

		if err := writeString(buf, pair.Key); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := json.Compact(buf, pair.Value); err != nil {
			return errors.Wrapf(err, "encoding member %q", pair.Key)
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return errors.Wrap(err, "encoding member name")
	}
	// Encode terminates every value with a newline
	buf.Truncate(buf.Len() - 1)
	return nil
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "an array"
	case string:
		return "a string"
	case float64:
		return "a number"
	case bool:
		return "a boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
