package supabase

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

// CodeNoRows is the PostgREST code for a single-object request matching no row.
const CodeNoRows = "PGRST116"

// ErrNoSession is returned by operations that need a stored session.
var ErrNoSession = errors.New("no active session")

// APIError is a non-2xx answer from GoTrue or PostgREST.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase: %s (status %d, code %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("supabase: %s (status %d)", e.Message, e.Status)
}

// NotFound reports whether the error means "no such row".
func (e *APIError) NotFound() bool {
	return e.Code == CodeNoRows || e.Status == http.StatusNotAcceptable
}

// errorBody covers both GoTrue and PostgREST error shapes.
type errorBody struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func newAPIError(status int, raw []byte) *APIError {
	e := &APIError{Status: status}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		if code, ok := body.Code.(string); ok {
			e.Code = code
		}
		if body.ErrorCode != "" {
			e.Code = body.ErrorCode
		}
		for _, m := range []string{body.Message, body.Msg, body.ErrorDescription, body.Error} {
			if m != "" {
				e.Message = m
				break
			}
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// StoreError reports a failed preference or profile operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
