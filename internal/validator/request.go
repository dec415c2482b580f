package validator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/majorcontext/restpcv/internal/config"
	"github.com/majorcontext/restpcv/internal/template"
)

// ResolvedRequest is a request with every placeholder substituted.
type ResolvedRequest struct {
	Method  string
	URL     string
	Headers []config.Header
	// Body is the compact JSON body for POST, nil for GET.
	Body []byte
}

// BuildRequest resolves cfg against b. Header names are sent as configured;
// the URL, header values and body are substituted. Values bound into the
// body are JSON-string escaped, so a password containing quotes or
// backslashes still yields the same JSON document the template describes.
func BuildRequest(cfg *config.ValidatorConfig, b template.Bindings) (*ResolvedRequest, error) {
	req := &ResolvedRequest{
		Method: cfg.Method,
		URL:    template.Substitute(cfg.URL, b),
	}

	if len(cfg.Headers) > 0 {
		req.Headers = make([]config.Header, len(cfg.Headers))
		for i, h := range cfg.Headers {
			req.Headers[i] = config.Header{Name: h.Name, Value: template.Substitute(h.Value, b)}
		}
	}

	if cfg.Method != config.MethodPOST {
		return req, nil
	}

	body, err := resolveBody(cfg.Body, b)
	if err != nil {
		return nil, &ConfigError{Field: "body", Err: err}
	}
	req.Body = body
	return req, nil
}

// resolveBody substitutes the body template and checks that the result is a
// single JSON object. Errors never quote the resolved body: it holds the
// credentials.
func resolveBody(tmpl string, b template.Bindings) ([]byte, error) {
	raw := template.SubstituteEscaped(tmpl, b, jsonEscape)

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, bodyError(err)
	}
	if obj == nil {
		return nil, errors.New("body is null, want a JSON object")
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(raw)); err != nil {
		return nil, bodyError(err)
	}
	return buf.Bytes(), nil
}

// bodyError replaces a decoding error with one that gives only a position.
// json.SyntaxError names the offending character, which may come from a
// password.
func bodyError(err error) error {
	var se *json.SyntaxError
	if errors.As(err, &se) {
		return fmt.Errorf("body is not valid JSON after substitution (offset %d)", se.Offset)
	}
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) {
		return fmt.Errorf("body is a JSON %s, want an object", te.Value)
	}
	return errors.New("body is not a JSON object after substitution")
}

// jsonEscape returns s encoded as the inside of a JSON string literal.
func jsonEscape(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return s
	}
	out := strings.TrimSuffix(buf.String(), "\n")
	return out[1 : len(out)-1]
}
