package validator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/majorcontext/restpcv/internal/config"
)

// Response is a completed HTTP exchange.
type Response struct {
	StatusCode int
	Body       []byte
	// Charset is the charset parameter of the Content-Type header, if any.
	Charset string
	// Truncated is set when the body exceeded the read limit. Body then
	// holds only the first limit bytes.
	Truncated bool
}

// drainLimit bounds how much of an oversized body is discarded so the
// connection can be reused.
const drainLimit = 256 << 10

// Invoker sends resolved requests. It performs exactly one attempt per call.
type Invoker struct {
	client   *http.Client
	maxBytes int64
}

// NewInvoker returns an Invoker that uses client and reads at most maxBytes
// of each response body. A nil client gets a dedicated pooled transport
// with the given timeout.
func NewInvoker(client *http.Client, timeout time.Duration, maxBytes int64) *Invoker {
	if client == nil {
		client = &http.Client{
			Transport: cleanhttp.DefaultPooledTransport(),
			Timeout:   timeout,
		}
	}
	return &Invoker{client: client, maxBytes: maxBytes}
}

// Invoke sends req and reads the response. Any failure before the status
// and body are read is a *TransportError, including cancellation of ctx.
// A body larger than the limit is not an error here: the response comes
// back with Truncated set, since only a matching status makes the body
// matter. The response body is always closed.
func (i *Invoker) Invoke(ctx context.Context, req *ResolvedRequest) (*Response, error) {
	target := redactURL(req.URL)
	fail := func(err error) error {
		var ue *url.Error
		if errors.As(err, &ue) {
			// url.Error repeats the full URL, query string included.
			err = ue.Err
		}
		return &TransportError{Method: req.Method, Target: target, Err: err}
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fail(err)
	}
	for _, h := range req.Headers {
		httpReq.Header.Add(h.Name, h.Value)
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", "restpcv")
	}

	resp, err := i.client.Do(httpReq)
	if err != nil {
		return nil, fail(err)
	}
	defer resp.Body.Close()

	limit := i.limit()
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fail(fmt.Errorf("reading response: %w", err))
	}
	truncated := int64(len(data)) > limit
	if truncated {
		data = data[:limit]
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       data,
		Charset:    charsetOf(resp.Header.Get("Content-Type")),
		Truncated:  truncated,
	}, nil
}

func (i *Invoker) limit() int64 {
	if i.maxBytes <= 0 {
		return config.DefaultMaxResponseBytes
	}
	return i.maxBytes
}

// tooLarge is the error for a truncated response to req whose body is needed.
func (i *Invoker) tooLarge(req *ResolvedRequest) error {
	return &TransportError{
		Method: req.Method,
		Target: redactURL(req.URL),
		Err:    fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, i.limit()),
	}
}

// charsetOf returns the charset parameter of a Content-Type value.
func charsetOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

// redactURL returns scheme://host/path of raw, dropping user info, query
// and fragment.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}).String()
}
