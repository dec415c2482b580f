package validator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/majorcontext/restpcv/internal/config"
)

// ExtractAttributes flattens the attribute object of a response into
// string attributes.
//
// With a blank objectPath the response root is used; otherwise root must
// have an object under that key. Values are stringified as follows: strings
// as-is, numbers in the exact form received, booleans as "true"/"false",
// null as "", and arrays or objects as compact JSON. The username attribute
// is always set to username, replacing any value from the response.
func ExtractAttributes(root map[string]any, objectPath, username string) (map[string]string, error) {
	obj := root
	if path := strings.TrimSpace(objectPath); path != "" {
		v, ok := root[path]
		if !ok {
			return nil, &MissingAttributeObjectError{Path: path}
		}
		obj, ok = v.(map[string]any)
		if !ok {
			return nil, &MissingAttributeObjectError{Path: path, Found: jsonType(v)}
		}
	}

	attrs := make(map[string]string, len(obj)+1)
	for k, v := range obj {
		attrs[k] = stringify(v)
	}
	attrs[config.BindingUsername] = username
	return attrs, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
