package validator

import (
	"errors"
	"fmt"
)

// Kind classifies a processing error for callers that need to branch on it
// without matching concrete types.
type Kind string

const (
	// KindConfig means the configuration cannot produce a valid request.
	KindConfig Kind = "config"
	// KindTransport means the endpoint could not be reached or its response read.
	KindTransport Kind = "transport"
	// KindResponseFormat means a success response was not a JSON object.
	KindResponseFormat Kind = "response_format"
	// KindMissingAttributeObject means the configured response object is absent.
	KindMissingAttributeObject Kind = "missing_attribute_object"
	// KindUnknown is reported for errors that carry no kind.
	KindUnknown Kind = "unknown"
)

// Stage names the step of a validation attempt.
type Stage string

const (
	StageValidateInput     Stage = "validate_input"
	StageBuildRequest      Stage = "build_request"
	StageInvoke            Stage = "invoke"
	StageEvaluate          Stage = "evaluate"
	StageExtractAttributes Stage = "extract_attributes"
)

// ErrResponseTooLarge is wrapped by a TransportError when a response with
// the expected status has a body over the configured limit. Oversized bodies
// on other statuses are ignored.
var ErrResponseTooLarge = errors.New("response body too large")

// ConfigError reports a configuration that cannot produce a valid request,
// such as a body template that is not a JSON object after substitution.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Kind returns KindConfig.
func (e *ConfigError) Kind() Kind { return KindConfig }

// TransportError reports a failure to complete the HTTP exchange.
// Target never includes the query string or user info of the request URL,
// since either may carry credentials.
type TransportError struct {
	Method string
	Target string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s request failed: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Target, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Kind returns KindTransport.
func (e *TransportError) Kind() Kind { return KindTransport }

// ResponseFormatError reports a success-status response whose body is not a
// JSON object.
type ResponseFormatError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *ResponseFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("status %d response %s: %v", e.StatusCode, e.Reason, e.Err)
	}
	return fmt.Sprintf("status %d response %s", e.StatusCode, e.Reason)
}

func (e *ResponseFormatError) Unwrap() error { return e.Err }

// Kind returns KindResponseFormat.
func (e *ResponseFormatError) Kind() Kind { return KindResponseFormat }

// MissingAttributeObjectError reports that the configured response object
// is absent from the response or is not a JSON object.
type MissingAttributeObjectError struct {
	Path string
	// Found is the JSON type found at Path, or "" if the key is absent.
	Found string
}

func (e *MissingAttributeObjectError) Error() string {
	if e.Found == "" {
		return fmt.Sprintf("response has no %q object", e.Path)
	}
	return fmt.Sprintf("response %q is %s, not an object", e.Path, e.Found)
}

// Kind returns KindMissingAttributeObject.
func (e *MissingAttributeObjectError) Kind() Kind { return KindMissingAttributeObject }

// ProcessingError is returned by Validate when the validator could not
// reach a decision. It is never returned for rejected credentials.
type ProcessingError struct {
	AttemptID string
	Stage     Stage
	Err       error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("validation %s failed at %s: %v", e.AttemptID, e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Kind returns the kind of the underlying component error.
func (e *ProcessingError) Kind() Kind { return KindOf(e.Err) }

// KindOf returns the Kind of the first error in err's chain that has one.
func KindOf(err error) Kind {
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}
