// Package config loads and validates REST credential validator definitions.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/majorcontext/restpcv/internal/template"
)

// HTTP methods accepted for the validation request.
const (
	MethodGET  = "GET"
	MethodPOST = "POST"
)

// ResponseTypeStatusCode compares the HTTP status code against ExpectedStatus.
// It is the only supported response type.
const ResponseTypeStatusCode = "HTTP Response Code"

// Defaults applied by Parse when a field is omitted.
const (
	DefaultURL              = "https://services.company.com/login"
	DefaultMethod           = MethodPOST
	DefaultExpectedStatus   = "200"
	DefaultBody             = `{ "accountVerification" : { "id" : 12345, "email" : "${username}", "password" : "${password}" } }`
	DefaultTimeout          = 10 * time.Second
	DefaultMaxResponseBytes = 1 << 20
)

// Reserved binding names. They are always bound to the credentials being
// validated and cannot be used for configured secrets.
const (
	BindingUsername = "username"
	BindingPassword = "password"
)

// Header is one configured request header. Value may contain placeholders;
// Name is sent verbatim.
type Header struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// ValidatorConfig describes how to call the REST endpoint for one validator
// instance. It is read-only once Parse or Load returns it.
type ValidatorConfig struct {
	URL            string   `yaml:"url"`
	Method         string   `yaml:"method,omitempty"`
	Headers        []Header `yaml:"headers,omitempty"`
	Body           string   `yaml:"body,omitempty"`
	ResponseType   string   `yaml:"response_type,omitempty"`
	ExpectedStatus string   `yaml:"expected_status,omitempty"`
	// ResponseObject names the top-level key of the response under which
	// attributes live. Blank means the response root.
	ResponseObject string `yaml:"response_object,omitempty"`

	Timeout          time.Duration `yaml:"timeout,omitempty"`
	MaxResponseBytes int64         `yaml:"max_response_bytes,omitempty"`

	// Secrets maps extra placeholder names to secret references
	// (e.g. env://API_KEY, op://vault/item/field). They are resolved once
	// when the validator is created.
	Secrets map[string]string `yaml:"secrets,omitempty"`
}

// Default returns the configuration a new validator starts from.
func Default() *ValidatorConfig {
	return &ValidatorConfig{
		URL:            DefaultURL,
		Method:         DefaultMethod,
		Body:           DefaultBody,
		ResponseType:   ResponseTypeStatusCode,
		ExpectedStatus: DefaultExpectedStatus,
	}
}

// Load reads and validates a validator definition from path.
func Load(path string) (*ValidatorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading validator config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML validator definition, applies defaults and validates it.
func Parse(data []byte) (*ValidatorConfig, error) {
	var cfg ValidatorConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing validator config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills omitted optional fields. URL and Body are left alone:
// an omitted URL is an error, and an omitted body only matters for POST.
func (c *ValidatorConfig) ApplyDefaults() {
	c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
	if c.Method == "" {
		c.Method = DefaultMethod
	}
	if c.ResponseType == "" {
		c.ResponseType = ResponseTypeStatusCode
	}
	c.ExpectedStatus = strings.TrimSpace(c.ExpectedStatus)
	if c.ExpectedStatus == "" {
		c.ExpectedStatus = DefaultExpectedStatus
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxResponseBytes == 0 {
		c.MaxResponseBytes = DefaultMaxResponseBytes
	}
}

// Validate reports every problem with the configuration. A non-nil error
// means the validator must not accept validation calls.
func (c *ValidatorConfig) Validate() error {
	var errs []error
	add := func(field, reason string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Reason: fmt.Sprintf(reason, args...)})
	}

	if strings.TrimSpace(c.URL) == "" {
		add("url", "is required")
	}

	switch c.Method {
	case MethodGET:
	case MethodPOST:
		if strings.TrimSpace(c.Body) == "" {
			add("body", "is required when method is POST")
		} else if err := c.checkBodyTemplate(); err != nil {
			add("body", "%v", err)
		}
	default:
		add("method", "must be %s or %s, got %q", MethodGET, MethodPOST, c.Method)
	}

	for i, h := range c.Headers {
		if strings.TrimSpace(h.Name) == "" {
			add(fmt.Sprintf("headers[%d].name", i), "is required")
		}
	}

	if c.ResponseType != ResponseTypeStatusCode {
		add("response_type", "must be %q, got %q", ResponseTypeStatusCode, c.ResponseType)
	}

	if code, err := strconv.Atoi(c.ExpectedStatus); err != nil || code < 100 || code > 599 {
		add("expected_status", "must be an HTTP status code, got %q", c.ExpectedStatus)
	} else if strconv.Itoa(code) != c.ExpectedStatus {
		// "0200" would never equal a formatted status code.
		add("expected_status", "must be written without sign or leading zeros, got %q", c.ExpectedStatus)
	}

	if c.Timeout < 0 {
		add("timeout", "must be positive, got %s", c.Timeout)
	}
	if c.MaxResponseBytes < 0 {
		add("max_response_bytes", "must be positive, got %d", c.MaxResponseBytes)
	}

	for name, ref := range c.Secrets {
		field := "secrets." + name
		switch {
		case name == BindingUsername || name == BindingPassword:
			add(field, "%q is reserved for the credentials being validated", name)
		case strings.Index(ref, "://") < 1:
			add(field, "invalid reference %q: missing scheme (expected format: scheme://path, e.g., env://API_KEY)", ref)
		}
	}

	return errors.Join(errs...)
}

// checkBodyTemplate substitutes placeholder values into the body template
// and checks the result is a JSON object. "0" is valid both inside a JSON
// string and as a bare JSON value.
func (c *ValidatorConfig) checkBodyTemplate() error {
	b := template.Bindings{BindingUsername: "0", BindingPassword: "0"}
	for name := range c.Secrets {
		b[name] = "0"
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(template.Substitute(c.Body, b)), &body); err != nil {
		return fmt.Errorf("must be a JSON object after placeholder substitution: %w", err)
	}
	if body == nil {
		return fmt.Errorf("must be a JSON object after placeholder substitution, got null")
	}
	return nil
}

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}
