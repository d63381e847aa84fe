package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/go-github/v62/github"
	"github.com/naka-gawa/pr-dashboard/internal/domain"
)

// GraphQLError is one entry of a GraphQL response's top-level errors array.
type GraphQLError struct {
	Message    string         `json:"message"`
	Type       string         `json:"type,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Alias returns the first path segment, which for aggregation queries is the
// repository alias the error belongs to.
func (e GraphQLError) Alias() string {
	if len(e.Path) == 0 {
		return ""
	}
	s, _ := e.Path[0].(string)
	return s
}

// Code returns the error type, looking in extensions when the top-level type is absent.
func (e GraphQLError) Code() string {
	if e.Type != "" {
		return e.Type
	}
	for _, k := range []string{"code", "type"} {
		if s, ok := e.Extensions[k].(string); ok {
			return s
		}
	}
	return ""
}

// APIError is a classified upstream failure. It unwraps to one of the domain
// error classes and to the underlying transport error, if any.
type APIError struct {
	Class      error
	StatusCode int
	Errors     []GraphQLError
	Err        error
}

func (e *APIError) Error() string {
	var detail string
	switch {
	case len(e.Errors) > 0:
		msgs := make([]string, len(e.Errors))
		for i, ge := range e.Errors {
			msgs[i] = ge.Message
		}
		detail = strings.Join(msgs, "; ")
	case e.Err != nil:
		detail = e.Err.Error()
	default:
		detail = fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("%v: %s", e.Class, detail)
}

func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Class}
	}
	return []error{e.Class, e.Err}
}

// callRecord captures what the recording transport saw for one GraphQL call.
type callRecord struct {
	statusCode int
	header     http.Header
	hasData    bool
	errors     []GraphQLError
}

// partial reports a 200 response that carried data alongside errors.
func (r *callRecord) partial() bool {
	return r.statusCode == http.StatusOK && r.hasData && len(r.errors) > 0 &&
		!errors.Is(classifyGraphQL(r.errors), domain.ErrUnauthenticated)
}

type callRecordKey struct{}

func withCallRecord(ctx context.Context) (context.Context, *callRecord) {
	rec := &callRecord{}
	return context.WithValue(ctx, callRecordKey{}, rec), rec
}

// recordingTransport records status, headers and the GraphQL errors array of
// calls whose context carries a callRecord. The body is restored for the caller.
type recordingTransport struct {
	base http.RoundTripper
}

func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	rec, ok := req.Context().Value(callRecordKey{}).(*callRecord)
	if !ok {
		return resp, nil
	}
	rec.statusCode = resp.StatusCode
	rec.header = resp.Header.Clone()

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []GraphQLError  `json:"errors"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		rec.hasData = len(envelope.Data) > 0 && string(envelope.Data) != "null"
		rec.errors = envelope.Errors
	}
	return resp, nil
}

// classify turns a failed GraphQL call into an *APIError.
func classify(err error, rec *callRecord) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	apiErr := &APIError{StatusCode: rec.statusCode, Errors: rec.errors, Err: err}
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		apiErr.Class = domain.ErrUnauthenticated
	case rec.statusCode == 0:
		// No response: connectivity failure or timeout.
		apiErr.Class = domain.ErrTransient
	case rec.statusCode == http.StatusUnauthorized:
		apiErr.Class = domain.ErrUnauthenticated
	case rec.statusCode == http.StatusForbidden:
		if rateLimited(rec.header) {
			apiErr.Class = domain.ErrTransient
		} else {
			apiErr.Class = domain.ErrUnauthenticated
		}
	case rec.statusCode == http.StatusTooManyRequests || rec.statusCode >= http.StatusInternalServerError:
		apiErr.Class = domain.ErrTransient
	case rec.statusCode != http.StatusOK:
		apiErr.Class = domain.ErrUpstream
	case len(rec.errors) > 0:
		apiErr.Class = classifyGraphQL(rec.errors)
	default:
		apiErr.Class = domain.ErrUpstream
	}
	return apiErr
}

// classifyGraphQL picks the most severe class among GraphQL errors.
func classifyGraphQL(errs []GraphQLError) error {
	class := domain.ErrUpstream
	for _, e := range errs {
		switch strings.ToUpper(e.Code()) {
		case "UNAUTHENTICATED":
			return domain.ErrUnauthenticated
		case "FORBIDDEN":
			class = domain.ErrForbidden
		case "NOT_FOUND":
			if class == domain.ErrUpstream {
				class = domain.ErrNotFound
			}
		case "RATE_LIMITED":
			if class == domain.ErrUpstream {
				class = domain.ErrTransient
			}
		}
		if strings.Contains(e.Message, "Bad credentials") {
			return domain.ErrUnauthenticated
		}
	}
	return class
}

func rateLimited(h http.Header) bool {
	return h.Get("Retry-After") != "" || h.Get("X-RateLimit-Remaining") == "0"
}

// classifyREST maps go-github errors onto the same classes.
func classifyREST(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	apiErr := &APIError{Class: domain.ErrTransient, Err: err}

	var rle *github.RateLimitError
	var arle *github.AbuseRateLimitError
	var ere *github.ErrorResponse
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		apiErr.Class = domain.ErrUnauthenticated
	case errors.As(err, &rle), errors.As(err, &arle):
		apiErr.Class = domain.ErrTransient
	case errors.As(err, &ere) && ere.Response != nil:
		apiErr.StatusCode = ere.Response.StatusCode
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
			apiErr.Class = domain.ErrUnauthenticated
		case apiErr.StatusCode == http.StatusNotFound:
			apiErr.Class = domain.ErrNotFound
		case apiErr.StatusCode >= http.StatusInternalServerError:
			apiErr.Class = domain.ErrTransient
		default:
			apiErr.Class = domain.ErrUpstream
		}
	}
	return apiErr
}
