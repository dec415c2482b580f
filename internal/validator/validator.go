// Package validator checks username/password pairs against a REST endpoint.
//
// A Validator is configured once from a config.ValidatorConfig and then
// answers Validate calls. Each call builds a request from the configured
// templates, sends it, compares the response status with the expected one
// and, on a match, returns attributes taken from the JSON response.
//
// Validate has three outcomes that callers must keep apart:
//
//   - Success: Result.Outcome is Success and Attributes holds at least
//     "username".
//   - Failure: the credentials were rejected (blank input or a status other
//     than the expected one). Result.Outcome is Failure and err is nil.
//   - Error: the validator could not decide. err is a *ProcessingError whose
//     Kind tells configuration, transport and response problems apart.
package validator

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/majorcontext/restpcv/internal/config"
	"github.com/majorcontext/restpcv/internal/id"
	"github.com/majorcontext/restpcv/internal/log"
	"github.com/majorcontext/restpcv/internal/secrets"
	"github.com/majorcontext/restpcv/internal/template"
)

// Outcome is the authentication decision of a completed validation.
type Outcome int

const (
	// Failure means the credentials were not accepted.
	Failure Outcome = iota
	// Success means the endpoint accepted the credentials.
	Success
)

func (o Outcome) String() string {
	if o == Success {
		return "success"
	}
	return "failure"
}

// Result is the decision for one validation attempt.
type Result struct {
	Outcome    Outcome
	Attributes map[string]string
}

// Authenticated reports whether the credentials were accepted.
func (r Result) Authenticated() bool {
	return r.Outcome == Success && len(r.Attributes) > 0
}

// CredentialValidator validates username/password pairs.
type CredentialValidator interface {
	Validate(ctx context.Context, username, password string) (Result, error)
}

// Attempt summarises a finished Validate call for observers. It carries no
// password or attribute values.
type Attempt struct {
	ID         string
	Username   string
	Outcome    Outcome
	Err        error
	StatusCode int
	Duration   time.Duration
}

// Observer is called synchronously at the end of every Validate call.
type Observer func(Attempt)

// Option configures a Validator.
type Option func(*options)

type options struct {
	client   *http.Client
	resolve  func(ctx context.Context, refs map[string]string) (map[string]string, error)
	observer Observer
}

// WithHTTPClient sends requests with client instead of a dedicated client
// built from the configured timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.client = client }
}

// WithSecretResolver replaces secrets.ResolveAll for the configured secrets.
func WithSecretResolver(resolve func(ctx context.Context, refs map[string]string) (map[string]string, error)) Option {
	return func(o *options) { o.resolve = resolve }
}

// WithObserver registers fn to be told about every attempt.
func WithObserver(fn Observer) Option {
	return func(o *options) { o.observer = fn }
}

// Validator implements CredentialValidator against a REST endpoint.
// It holds no per-call state and is safe for concurrent use.
type Validator struct {
	cfg      *config.ValidatorConfig
	secrets  template.Bindings
	invoker  *Invoker
	observer Observer
}

var _ CredentialValidator = (*Validator)(nil)

// New validates cfg, resolves its secrets and returns a ready Validator.
// cfg is copied; later changes to it have no effect.
func New(ctx context.Context, cfg *config.ValidatorConfig, opts ...Option) (*Validator, error) {
	o := options{resolve: secrets.ResolveAll}
	for _, opt := range opts {
		opt(&o)
	}

	c := *cfg
	c.Headers = slices.Clone(cfg.Headers)
	c.Secrets = maps.Clone(cfg.Secrets)
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid validator configuration: %w", err)
	}

	bound := make(template.Bindings, len(c.Secrets))
	if len(c.Secrets) > 0 {
		resolved, err := o.resolve(ctx, c.Secrets)
		if err != nil {
			return nil, fmt.Errorf("configuring validator: %w", err)
		}
		maps.Copy(bound, resolved)
	}

	return &Validator{
		cfg:      &c,
		secrets:  bound,
		invoker:  NewInvoker(o.client, c.Timeout, c.MaxResponseBytes),
		observer: o.observer,
	}, nil
}

// Config returns a copy of the validator's configuration.
func (v *Validator) Config() config.ValidatorConfig {
	c := *v.cfg
	c.Headers = slices.Clone(v.cfg.Headers)
	c.Secrets = maps.Clone(v.cfg.Secrets)
	return c
}

// bindings returns a fresh table for one attempt. Configured secrets never
// use the credential names; Validate on the config rejects them.
func (v *Validator) bindings(username, password string) template.Bindings {
	b := make(template.Bindings, len(v.secrets)+2)
	maps.Copy(b, v.secrets)
	b[config.BindingUsername] = username
	b[config.BindingPassword] = password
	return b
}

// Validate checks username and password against the endpoint.
func (v *Validator) Validate(ctx context.Context, username, password string) (res Result, err error) {
	attempt := Attempt{ID: id.Generate("val"), Username: username}
	logger := log.With("attempt", attempt.ID, "username", username)
	start := time.Now()
	defer func() {
		attempt.Outcome = res.Outcome
		attempt.Err = err
		attempt.Duration = time.Since(start)
		if v.observer != nil {
			v.observer(attempt)
		}
	}()

	fail := func(stage Stage, cause error) (Result, error) {
		perr := &ProcessingError{AttemptID: attempt.ID, Stage: stage, Err: cause}
		logger.Debug("validation error", "stage", stage, "kind", perr.Kind(), "error", cause)
		return Result{Outcome: Failure}, perr
	}

	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		logger.Debug("authentication failed", "stage", StageValidateInput, "reason", "blank username or password")
		return Result{Outcome: Failure}, nil
	}

	req, err := BuildRequest(v.cfg, v.bindings(username, password))
	if err != nil {
		return fail(StageBuildRequest, err)
	}
	logger.Debug("sending validation request", "method", req.Method, "target", redactURL(req.URL))

	resp, err := v.invoker.Invoke(ctx, req)
	if err != nil {
		return fail(StageInvoke, err)
	}
	attempt.StatusCode = resp.StatusCode

	if !StatusMatches(resp.StatusCode, v.cfg.ExpectedStatus) {
		logger.Debug("authentication failed", "status", resp.StatusCode, "expected", v.cfg.ExpectedStatus)
		return Result{Outcome: Failure}, nil
	}

	if resp.Truncated {
		return fail(StageInvoke, v.invoker.tooLarge(req))
	}

	body, err := ParseBody(resp)
	if err != nil {
		return fail(StageEvaluate, err)
	}

	attrs, err := ExtractAttributes(body, v.cfg.ResponseObject, username)
	if err != nil {
		return fail(StageExtractAttributes, err)
	}

	logger.Debug("authentication successful", "status", resp.StatusCode, "attributes", len(attrs))
	return Result{Outcome: Success, Attributes: attrs}, nil
}
