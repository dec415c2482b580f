package validator

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/majorcontext/restpcv/internal/config"
)

func TestInvokePOST(t *testing.T) {
	var gotBody, gotContentType, gotMethod string
	var gotMulti []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotMulti = r.Header.Values("X-Multi")
		w.Header().Set("Content-Type", "application/json; charset=ISO-8859-1")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	inv := NewInvoker(nil, 5*time.Second, 1024)
	resp, err := inv.Invoke(context.Background(), &ResolvedRequest{
		Method: "POST",
		URL:    srv.URL + "/login",
		Headers: []config.Header{
			{Name: "X-Multi", Value: "one"},
			{Name: "X-Multi", Value: "two"},
		},
		Body: []byte(`{"u":"alice"}`),
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	if gotMethod != "POST" || gotBody != `{"u":"alice"}` {
		t.Errorf("server got %s %q", gotMethod, gotBody)
	}
	if gotContentType != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if len(gotMulti) != 2 || gotMulti[0] != "one" || gotMulti[1] != "two" {
		t.Errorf("X-Multi = %v, want [one two]", gotMulti)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("Body = %q", resp.Body)
	}
	if resp.Charset != "ISO-8859-1" {
		t.Errorf("Charset = %q", resp.Charset)
	}
}

func TestInvokeKeepsConfiguredContentType(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Content-Type")
	}))
	defer srv.Close()

	_, err := NewInvoker(nil, time.Second, 1024).Invoke(context.Background(), &ResolvedRequest{
		Method:  "POST",
		URL:     srv.URL,
		Headers: []config.Header{{Name: "Content-Type", Value: "application/vnd.api+json"}},
		Body:    []byte(`{}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "application/vnd.api+json" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestInvokeTransportErrors(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	closed := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name    string
		url     string
		timeout time.Duration
	}{
		{"connection refused", closedURL + "/login?p=secret", time.Second},
		{"timeout", slow.URL + "/?p=secret", 50 * time.Millisecond},
		{"non-http scheme", "ftp://example.com/?p=secret", time.Second},
		{"malformed url", "http://[::1/?p=secret", time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInvoker(nil, tt.timeout, 1024).Invoke(context.Background(), &ResolvedRequest{Method: "GET", URL: tt.url})
			var te *TransportError
			if !errors.As(err, &te) {
				t.Fatalf("expected TransportError, got %v", err)
			}
			if strings.Contains(err.Error(), "secret") {
				t.Errorf("error leaks query string: %v", err)
			}
		})
	}
}

func TestInvokeTruncatesOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, strings.Repeat("x", 4096))
	}))
	defer srv.Close()

	inv := NewInvoker(nil, time.Second, 1024)
	req := &ResolvedRequest{Method: "GET", URL: srv.URL + "/?p=secret"}
	resp, err := inv.Invoke(context.Background(), req)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !resp.Truncated {
		t.Error("Truncated = false for a body over the limit")
	}
	if len(resp.Body) != 1024 {
		t.Errorf("len(Body) = %d, want 1024", len(resp.Body))
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", resp.StatusCode)
	}

	tooLarge := inv.tooLarge(req)
	var te *TransportError
	if !errors.As(tooLarge, &te) || !errors.Is(tooLarge, ErrResponseTooLarge) {
		t.Errorf("tooLarge = %v, want TransportError wrapping ErrResponseTooLarge", tooLarge)
	}
	if strings.Contains(tooLarge.Error(), "secret") {
		t.Errorf("error leaks query string: %v", tooLarge)
	}
}

func TestInvokeBodyAtLimitIsNotTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Repeat("x", 1024))
	}))
	defer srv.Close()

	resp, err := NewInvoker(nil, time.Second, 1024).Invoke(context.Background(), &ResolvedRequest{Method: "GET", URL: srv.URL})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.Truncated || len(resp.Body) != 1024 {
		t.Errorf("Truncated = %t, len(Body) = %d", resp.Truncated, len(resp.Body))
	}
}

func TestInvokeCancelled(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := NewInvoker(nil, 10*time.Second, 1024).Invoke(ctx, &ResolvedRequest{Method: "GET", URL: srv.URL})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

func TestRedactURL(t *testing.T) {
	got := redactURL("https://user:pw@svc.example.com:8443/login?u=alice&p=secret#frag")
	if got != "https://svc.example.com:8443/login" {
		t.Errorf("redactURL() = %q", got)
	}
}

func TestCharsetOf(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"application/json", ""},
		{"application/json; charset=UTF-8", "UTF-8"},
		{`text/plain; charset="iso-8859-1"`, "iso-8859-1"},
		{"garbage;;;", ""},
	}
	for _, tt := range tests {
		if got := charsetOf(tt.in); got != tt.want {
			t.Errorf("charsetOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
