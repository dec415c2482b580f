package validator

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// StatusMatches reports whether the decimal form of statusCode is exactly
// expected. There is no range or wildcard matching.
func StatusMatches(statusCode int, expected string) bool {
	return strconv.Itoa(statusCode) == expected
}

// ParseBody decodes the body of a success-status response as a single JSON
// object. Numbers are kept as json.Number so attribute values keep the
// exact text the endpoint sent. Bodies in a declared non-UTF-8 charset are
// transcoded first.
func ParseBody(resp *Response) (map[string]any, error) {
	data, err := decodeCharset(resp.Body, resp.Charset)
	if err != nil {
		return nil, &ResponseFormatError{StatusCode: resp.StatusCode, Reason: "has an unsupported charset " + strconv.Quote(resp.Charset), Err: err}
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &ResponseFormatError{StatusCode: resp.StatusCode, Reason: "is not valid JSON", Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &ResponseFormatError{StatusCode: resp.StatusCode, Reason: "has data after the JSON value"}
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &ResponseFormatError{StatusCode: resp.StatusCode, Reason: "is JSON " + jsonType(v) + ", not an object"}
	}
	return obj, nil
}

func decodeCharset(data []byte, charset string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8", "us-ascii":
		return data, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, err
	}
	return enc.NewDecoder().Bytes(data)
}

// jsonType names the JSON type of a value produced by a UseNumber decoder.
func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return "unknown"
}
