package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majorcontext/restpcv/internal/config"
	"github.com/majorcontext/restpcv/internal/log"
)

func newTestValidator(t *testing.T, cfg *config.ValidatorConfig, opts ...Option) *Validator {
	t.Helper()
	v, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	return v
}

func getConfig(url string) *config.ValidatorConfig {
	return &config.ValidatorConfig{
		URL:            url + "/login?u=${username}",
		Method:         config.MethodGET,
		ExpectedStatus: "200",
	}
}

func TestValidateSuccess(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		io.WriteString(w, `{"role":"admin"}`)
	}))
	defer srv.Close()

	v := newTestValidator(t, getConfig(srv.URL))
	res, err := v.Validate(context.Background(), "alice", "secret")
	require.NoError(t, err)

	assert.Equal(t, Success, res.Outcome)
	assert.True(t, res.Authenticated())
	assert.Equal(t, map[string]string{"username": "alice", "role": "admin"}, res.Attributes)
	assert.Equal(t, "u=alice", gotQuery)
}

func TestValidateFailureOnStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, "not json at all")
	}))
	defer srv.Close()

	v := newTestValidator(t, getConfig(srv.URL))
	res, err := v.Validate(context.Background(), "alice", "wrong")
	require.NoError(t, err, "a rejected credential is not an error")
	assert.Equal(t, Failure, res.Outcome)
	assert.False(t, res.Authenticated())
	assert.Empty(t, res.Attributes)
}

func TestValidateStatusMustMatchExactly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	v := newTestValidator(t, getConfig(srv.URL))
	res, err := v.Validate(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, Failure, res.Outcome)
}

func TestValidateBlankCredentialsSkipNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	v := newTestValidator(t, getConfig(srv.URL))
	for _, creds := range [][2]string{{"", "pw"}, {"user", ""}, {"   ", "pw"}, {"user", "\t"}} {
		res, err := v.Validate(context.Background(), creds[0], creds[1])
		require.NoError(t, err)
		assert.Equal(t, Failure, res.Outcome, "credentials %q", creds)
	}
	assert.Zero(t, calls.Load(), "no request may be sent for blank credentials")
}

func TestValidateBlankCredentialsLogStage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, log.Init(log.Options{Verbose: true, Stderr: &buf}))
	defer log.Close()

	v := newTestValidator(t, getConfig("https://svc.invalid"))
	res, err := v.Validate(context.Background(), "", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, Failure, res.Outcome)

	assert.Contains(t, buf.String(), string(StageValidateInput))
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestValidateOversizedRejectionIsFailure(t *testing.T) {
	big := strings.Repeat("x", 2<<20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, big)
	}))
	defer srv.Close()

	v := newTestValidator(t, getConfig(srv.URL))
	res, err := v.Validate(context.Background(), "alice", "wrong")
	require.NoError(t, err, "body size of a rejection does not matter")
	assert.Equal(t, Failure, res.Outcome)
	assert.Empty(t, res.Attributes)
}

func TestValidateOversizedAcceptanceIsError(t *testing.T) {
	big := `{"role":"` + strings.Repeat("x", 2<<20) + `"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, big)
	}))
	defer srv.Close()

	v := newTestValidator(t, getConfig(srv.URL))
	_, err := v.Validate(context.Background(), "alice", "secret")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResponseTooLarge), "got %v", err)
	assert.Equal(t, KindTransport, KindOf(err))

	var perr *ProcessingError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, StageInvoke, perr.Stage)
}

func TestValidatePOSTWithHeadersAndSecrets(t *testing.T) {
	var gotBody map[string]any
	var gotKey, gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		gotKey = r.Header.Get("X-Api-Key")
		gotUser = r.Header.Get("X-User")
		io.WriteString(w, `{"result":{"email":"a@b.com","groups":["x"]},"status":"ok"}`)
	}))
	defer srv.Close()

	cfg := &config.ValidatorConfig{
		URL:    srv.URL + "/login",
		Method: config.MethodPOST,
		Headers: []config.Header{
			{Name: "X-Api-Key", Value: "${api_key}"},
			{Name: "X-User", Value: "${username}"},
		},
		Body:           `{"email":"${username}","password":"${password}","tenant":"${tenant}"}`,
		ExpectedStatus: "200",
		ResponseObject: "result",
		Secrets:        map[string]string{"api_key": "mock://api", "tenant": "mock://tenant"},
	}
	resolver := func(_ context.Context, refs map[string]string) (map[string]string, error) {
		assert.Equal(t, cfg.Secrets, refs)
		return map[string]string{"api_key": "k-1", "tenant": "acme"}, nil
	}

	v := newTestValidator(t, cfg, WithSecretResolver(resolver))
	res, err := v.Validate(context.Background(), "alice", `p"w`)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"username": "alice", "email": "a@b.com", "groups": `["x"]`}, res.Attributes)
	assert.Equal(t, map[string]any{"email": "alice", "password": `p"w`, "tenant": "acme"}, gotBody)
	assert.Equal(t, "k-1", gotKey)
	assert.Equal(t, "alice", gotUser)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		mutate  func(*config.ValidatorConfig)
		stage   Stage
		kind    Kind
	}{
		{
			name:    "non-json success body",
			handler: func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "<html>welcome</html>") },
			stage:   StageEvaluate,
			kind:    KindResponseFormat,
		},
		{
			name:    "array success body",
			handler: func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, `[1,2]`) },
			stage:   StageEvaluate,
			kind:    KindResponseFormat,
		},
		{
			name:    "missing attribute object",
			handler: func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, `{"result":{"email":"a@b.com"}}`) },
			mutate:  func(c *config.ValidatorConfig) { c.ResponseObject = "missing" },
			stage:   StageExtractAttributes,
			kind:    KindMissingAttributeObject,
		},
		{
			name:    "attribute path is not an object",
			handler: func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, `{"result":"ok"}`) },
			mutate:  func(c *config.ValidatorConfig) { c.ResponseObject = "result" },
			stage:   StageExtractAttributes,
			kind:    KindMissingAttributeObject,
		},
		{
			name:    "body breaks with credential value",
			handler: func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, `{}`) },
			mutate: func(c *config.ValidatorConfig) {
				c.Method = config.MethodPOST
				c.Body = `{"id":${secret_id}}`
				c.Secrets = map[string]string{"secret_id": "mock://id"}
			},
			stage: StageBuildRequest,
			kind:  KindConfig,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			cfg := getConfig(srv.URL)
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			v := newTestValidator(t, cfg, WithSecretResolver(func(context.Context, map[string]string) (map[string]string, error) {
				return map[string]string{"secret_id": "not-a-number"}, nil
			}))

			res, err := v.Validate(context.Background(), "alice", "secret")
			require.Error(t, err)
			assert.Equal(t, Failure, res.Outcome)
			assert.Empty(t, res.Attributes)

			var perr *ProcessingError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.stage, perr.Stage)
			assert.Equal(t, tt.kind, perr.Kind())
			assert.Equal(t, tt.kind, KindOf(err))
			assert.NotEmpty(t, perr.AttemptID)
		})
	}
}

func TestValidateTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	v := newTestValidator(t, getConfig(url))
	_, err := v.Validate(context.Background(), "alice", "secret")

	var te *TransportError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestValidateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := getConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	v := newTestValidator(t, cfg)

	start := time.Now()
	_, err := v.Validate(context.Background(), "alice", "secret")
	assert.Equal(t, KindTransport, KindOf(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(context.Background(), &config.ValidatorConfig{Method: "DELETE"})
	require.Error(t, err)

	var ve *config.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestNewSecretResolutionFailure(t *testing.T) {
	cfg := getConfig("https://svc")
	cfg.Secrets = map[string]string{"api_key": "mock://x"}
	_, err := New(context.Background(), cfg, WithSecretResolver(func(context.Context, map[string]string) (map[string]string, error) {
		return nil, errors.New("vault sealed")
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault sealed")
}

func TestNewCopiesConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	cfg := getConfig(srv.URL)
	cfg.Headers = []config.Header{{Name: "X-A", Value: "1"}}
	v := newTestValidator(t, cfg)

	cfg.ExpectedStatus = "418"
	cfg.Headers[0].Value = "changed"

	res, err := v.Validate(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, Success, res.Outcome)
	assert.Equal(t, "1", v.Config().Headers[0].Value)
}

func TestValidateConcurrentCallsKeepBindingsSeparate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "pw-"+body["user"] {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"seen": body["user"]})
	}))
	defer srv.Close()

	v := newTestValidator(t, &config.ValidatorConfig{
		URL:            srv.URL,
		Method:         config.MethodPOST,
		Body:           `{"user":"${username}","password":"${password}"}`,
		ExpectedStatus: "200",
	})

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("user%d", i)
			res, err := v.Validate(context.Background(), user, "pw-"+user)
			if err != nil {
				errs <- err
				return
			}
			if !res.Authenticated() || res.Attributes["seen"] != user || res.Attributes["username"] != user {
				errs <- fmt.Errorf("%s: got %+v", user, res)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestObserver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	var got []Attempt
	v := newTestValidator(t, getConfig(srv.URL), WithObserver(func(a Attempt) { got = append(got, a) }))

	v.Validate(context.Background(), "alice", "wrong")
	v.Validate(context.Background(), "", "x")

	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].Username)
	assert.Equal(t, Failure, got[0].Outcome)
	assert.Equal(t, http.StatusForbidden, got[0].StatusCode)
	assert.NoError(t, got[0].Err)
	assert.NotEqual(t, got[0].ID, got[1].ID)
	assert.Zero(t, got[1].StatusCode)
}

func TestDescribe(t *testing.T) {
	d := Describe()
	assert.Equal(t, Name, d.Name)
	assert.Equal(t, []string{"username"}, d.AttributeContract)
	assert.True(t, d.SupportsExtendedContract)

	keys := make(map[string]bool)
	for _, f := range d.Fields {
		keys[f.Key] = true
	}
	for _, k := range []string{"url", "method", "headers", "body", "response_type", "expected_status", "response_object"} {
		assert.True(t, keys[k], "missing field %q", k)
	}
}
