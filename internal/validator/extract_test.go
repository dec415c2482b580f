package validator

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeJSON(t *testing.T, s string) map[string]any {
	t.Helper()
	obj, err := ParseBody(&Response{StatusCode: 200, Body: []byte(s)})
	require.NoError(t, err)
	return obj
}

func TestExtractAttributesRoot(t *testing.T) {
	root := decodeJSON(t, `{"role":"admin","age":42,"ratio":0.5,"active":true,"manager":null,
		"groups":["a","b"],"address":{"city":"Zürich","zip":"8000"},"html":"<b>&</b>"}`)

	attrs, err := ExtractAttributes(root, "", "alice")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"username": "alice",
		"role":     "admin",
		"age":      "42",
		"ratio":    "0.5",
		"active":   "true",
		"manager":  "",
		"groups":   `["a","b"]`,
		"address":  `{"city":"Zürich","zip":"8000"}`,
		"html":     "<b>&</b>",
	}, attrs)
}

func TestExtractAttributesInputUsernameWins(t *testing.T) {
	root := decodeJSON(t, `{"username":"someone-else","email":"a@b.com"}`)
	attrs, err := ExtractAttributes(root, "", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", attrs["username"])
	assert.Equal(t, "a@b.com", attrs["email"])
}

func TestExtractAttributesObjectPath(t *testing.T) {
	root := decodeJSON(t, `{"result":{"email":"a@b.com"},"meta":{"x":1}}`)

	attrs, err := ExtractAttributes(root, "result", "alice")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"email": "a@b.com", "username": "alice"}, attrs)

	attrs, err = ExtractAttributes(root, "  result  ", "alice")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", attrs["email"])
}

func TestExtractAttributesBlankPathUsesRoot(t *testing.T) {
	root := decodeJSON(t, `{"result":{"email":"a@b.com"}}`)
	attrs, err := ExtractAttributes(root, "   ", "alice")
	require.NoError(t, err)
	assert.Equal(t, `{"email":"a@b.com"}`, attrs["result"])
}

func TestExtractAttributesEmptyObject(t *testing.T) {
	attrs, err := ExtractAttributes(decodeJSON(t, `{"result":{}}`), "result", "alice")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"username": "alice"}, attrs)
}

func TestExtractAttributesMissingObject(t *testing.T) {
	root := decodeJSON(t, `{"result":{"email":"a@b.com"},"list":[1],"name":"x","none":null}`)

	tests := []struct {
		path  string
		found string
	}{
		{"missing", ""},
		{"list", "array"},
		{"name", "string"},
		{"none", "null"},
	}
	for _, tt := range tests {
		_, err := ExtractAttributes(root, tt.path, "alice")
		var mae *MissingAttributeObjectError
		require.True(t, errors.As(err, &mae), "path %q: got %v", tt.path, err)
		assert.Equal(t, tt.path, mae.Path)
		assert.Equal(t, tt.found, mae.Found)
		assert.Equal(t, KindMissingAttributeObject, KindOf(err))
	}
}

func TestStringifyNumberPreservesText(t *testing.T) {
	assert.Equal(t, "1e3", stringify(json.Number("1e3")))
	assert.Equal(t, "[1,2.50]", stringify([]any{json.Number("1"), json.Number("2.50")}))
}
