package validator

import "github.com/majorcontext/restpcv/internal/config"

// Name is the display name of the validator.
const Name = "REST Service Password Credential Validator"

// Field describes one configuration field for hosts that render a form.
type Field struct {
	Key         string
	Description string
	Default     string
	Required    bool
	Options     []string
}

// Descriptor describes the validator to a host.
type Descriptor struct {
	Name string
	// AttributeContract lists the attributes every successful result has.
	AttributeContract []string
	// SupportsExtendedContract is true because responses can add any
	// attribute beyond the contract.
	SupportsExtendedContract bool
	Fields                   []Field
}

// Describe returns the validator's descriptor.
func Describe() Descriptor {
	return Descriptor{
		Name:                     Name,
		AttributeContract:        []string{config.BindingUsername},
		SupportsExtendedContract: true,
		Fields: []Field{
			{
				Key:         "url",
				Description: "The URL for the REST web service. Use ${username} for username, ${password} for password.",
				Default:     config.DefaultURL,
				Required:    true,
			},
			{
				Key:         "method",
				Description: "The HTTP method to call the REST web service.",
				Default:     config.DefaultMethod,
				Required:    true,
				Options:     []string{config.MethodGET, config.MethodPOST},
			},
			{
				Key:         "headers",
				Description: "HTTP headers to send with the request, as a list of name/value pairs. Values may use placeholders.",
			},
			{
				Key:         "body",
				Description: "The JSON body of the HTTP call (POST only). Use ${username} for username, ${password} for password.",
				Default:     config.DefaultBody,
			},
			{
				Key:         "response_type",
				Description: "What response method to check for a successful login.",
				Default:     config.ResponseTypeStatusCode,
				Required:    true,
				Options:     []string{config.ResponseTypeStatusCode},
			},
			{
				Key:         "expected_status",
				Description: "Value to check for a successful login (the HTTP response code).",
				Default:     config.DefaultExpectedStatus,
				Required:    true,
			},
			{
				Key:         "response_object",
				Description: "Response JSON object containing return attributes (blank for the root of the JSON response).",
			},
			{
				Key:         "timeout",
				Description: "Maximum time for the whole HTTP exchange.",
				Default:     config.DefaultTimeout.String(),
			},
			{
				Key:         "max_response_bytes",
				Description: "Largest response body that will be read.",
				Default:     "1048576",
			},
			{
				Key:         "secrets",
				Description: "Extra placeholders bound to secret references (env://, op://, awssm://, keyring://).",
			},
		},
	}
}
