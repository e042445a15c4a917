// Package testutil provides shared test utilities and fixtures.
//
// Frame fixtures build detector output with known stabilized positions so
// tests in the posture layers can reason about exact metric values.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// LoopbackAddr is the RemoteAddr given to requests from NewLoopbackRequest.
// The tsweb debug handlers only answer loopback callers.
const LoopbackAddr = "127.0.0.1:12345"

// NewLoopbackRequest creates a test request from localhost. An empty body
// sends none.
func NewLoopbackRequest(method, path, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = LoopbackAddr
	return req
}

// Serve runs req through h and returns the recorded response.
func Serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// AssertStatusCode checks the recorded status and prints the body on mismatch.
func AssertStatusCode(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Errorf("status code = %d, want %d; body: %s", rec.Code, want, strings.TrimSpace(rec.Body.String()))
	}
}
