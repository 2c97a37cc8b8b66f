package normalizer

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Object is a decoded JSON object with keys exactly as sent. Struct tags are
// not used here because encoding/json matches them case-insensitively.
type Object map[string]json.RawMessage

// ParseObject decodes raw if it is a JSON object.
func ParseObject(raw json.RawMessage) (Object, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var obj Object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// Object returns the nested object at key, or nil. Lookups on a nil Object
// are safe, so paths can be chained.
func (o Object) Object(key string) Object {
	obj, _ := ParseObject(o[key])
	return obj
}

// Text returns the string value at key. ok is false for missing keys and
// non-string values.
func (o Object) Text(key string) (string, bool) {
	raw := bytes.TrimSpace(o[key])
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// ID returns an identifier that may be sent as a string or a number.
// Empty strings, zero and non-scalar values are treated as absent.
func (o Object) ID(key string) (string, bool) {
	if s, ok := o.Text(key); ok {
		return s, s != ""
	}

	raw := bytes.TrimSpace(o[key])
	if len(raw) == 0 {
		return "", false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false
	}
	f, err := n.Float64()
	if err != nil || f == 0 {
		return "", false
	}
	if strings.ContainsAny(n.String(), ".eE") {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return n.String(), true
}
