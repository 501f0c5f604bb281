package document

import "encoding/json"

// Type is the JSON type of a raw value.
type Type int

// JSON value types.
const (
	TypeInvalid Type = iota
	TypeNull
	TypeBool
	TypeNumber
	TypeString
	TypeArray
	TypeObject
)

// String returns the JSON name of the type.
func (t Type) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeBool:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeArray:
		return "array"
	case TypeObject:
		return "object"
	default:
		return "invalid"
	}
}

// TypeOf inspects the first significant byte of raw.
// It does not validate the rest of the value.
func TypeOf(raw json.RawMessage) Type {
	for _, c := range raw {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return TypeObject
		case '[':
			return TypeArray
		case '"':
			return TypeString
		case 't', 'f':
			return TypeBool
		case 'n':
			return TypeNull
		case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
			return TypeNumber
		default:
			return TypeInvalid
		}
	}
	return TypeInvalid
}
