package cli

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// setTestHome isolates config reads and writes in a temp directory and
// clears the QUARRY_* environment so tests see only what they set.
func setTestHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Setenv("QUARRY_HOST", "")
	t.Setenv("QUARRY_API_KEY", "")
	t.Setenv("QUARRY_TOKEN", "")
	t.Setenv("QUARRY_OUTPUT", "")
	return dir
}

// execCLI runs the root command with args. Cobra's own output is discarded;
// command output goes to os.Stdout as in production.
func execCLI(args ...string) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.Execute()
}

// runCLI is execCLI with a fresh isolated home.
func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	setTestHome(t)
	return execCLI(args...)
}

// captureStdout redirects os.Stdout for the duration of fn and returns
// everything written to it.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	outC := make(chan string, 1)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		outC <- buf.String()
	}()

	defer func() {
		_ = w.Close()
		os.Stdout = old
	}()

	fn()
	_ = w.Close()
	os.Stdout = old
	return <-outC
}

// withStdin feeds input through a pipe as os.Stdin for the duration of fn.
func withStdin(t *testing.T, input string, fn func()) {
	t.Helper()

	old := os.Stdin
	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, _ = w.WriteString(input)
	_ = w.Close()
	os.Stdin = r

	defer func() { os.Stdin = old }()
	fn()
}

// capturedRequest is one request the fake API received.
type capturedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Body   string
	Header http.Header
}

// requestRecorder collects requests for assertions after a command runs.
type requestRecorder struct {
	mu       sync.Mutex
	requests []capturedRequest
}

func (r *requestRecorder) record(req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, capturedRequest{
		Method: req.Method,
		Path:   req.URL.Path,
		Query:  req.URL.Query(),
		Body:   string(body),
		Header: req.Header.Clone(),
	})
}

func (r *requestRecorder) all() []capturedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]capturedRequest(nil), r.requests...)
}

func (r *requestRecorder) last(t *testing.T) capturedRequest {
	t.Helper()
	reqs := r.all()
	require.NotEmpty(t, reqs, "expected at least one API request")
	return reqs[len(reqs)-1]
}

// newTestServer starts a fake API that records every request and answers
// with handler, or with an empty JSON object when handler is nil.
func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *requestRecorder) {
	t.Helper()
	rec := &requestRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		if handler != nil {
			handler(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

// jsonHandler answers every request with a fixed JSON body.
func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

// routeHandler answers by "METHOD /path" lookup and 404s anything else.
func routeHandler(routes map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if body, ok := routes[r.Method+" "+r.URL.Path]; ok {
			fmt.Fprint(w, body)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"code":404,"message":"not found"}`)
	}
}
