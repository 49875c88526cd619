package client

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c := NewClient("http://localhost:8080/", "", "")
	assert.Equal(t, "http://localhost:8080", c.BaseURL)
}

func TestNewClient_SetsFields(t *testing.T) {
	c := NewClient("http://localhost:8080", "my-key", "my-token")
	assert.Equal(t, "my-key", c.APIKey)
	assert.Equal(t, "my-token", c.Token)
	require.NotNil(t, c.HTTPClient)
	assert.Equal(t, 30*time.Second, c.HTTPClient.Timeout)
}

func TestDo_BuildsV1URL(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "")
	q := url.Values{}
	q.Set("max_results", "10")
	resp, err := c.Do(http.MethodGet, "/datasets", q, nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "/v1/datasets", gotPath)
	assert.Equal(t, "max_results=10", gotQuery)
}

func TestDo_NoQueryString(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "")
	resp, err := c.Do(http.MethodGet, "/datasets", nil, nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, gotQuery)
}

func TestDo_APIKeyHeader(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-key", "")
	resp, err := c.Do(http.MethodGet, "/datasets", nil, nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, "secret-key", got.Get("X-API-Key"))
	assert.Empty(t, got.Get("Authorization"))
	assert.Empty(t, got.Get("Content-Type"), "no body means no content type")
}

func TestDo_TokenTakesPrecedence(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-key", "jwt-token")
	resp, err := c.Do(http.MethodGet, "/datasets", nil, nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer jwt-token", got.Get("Authorization"))
	assert.Empty(t, got.Get("X-API-Key"))
}

func TestDo_EncodesBody(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "")
	resp, err := c.Do(http.MethodPost, "/datasets", nil, map[string]string{"name": "trips"})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, `{"name":"trips"}`, string(gotBody))
}

func TestDo_RequestError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", "")
	_, err := c.Do(http.MethodGet, "/datasets", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute request")
}

func TestCheckError_SuccessStatuses(t *testing.T) {
	for _, status := range []int{200, 201, 204} {
		resp := &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}
		assert.NoError(t, CheckError(resp), "status %d", status)
	}
}

func TestCheckError_LeavesSuccessBodyUnread(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(`{"data":[]}`)),
	}
	require.NoError(t, CheckError(resp))

	body, err := ReadBody(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"data":[]}`, string(body))
}

func TestCheckError_DecodesEnvelope(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(strings.NewReader(`{"code":404,"message":"dataset not found"}`)),
	}
	err := CheckError(resp)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.HTTPStatus)
	assert.Equal(t, 404, apiErr.Code)
	assert.Equal(t, "dataset not found", apiErr.Message)
	assert.Equal(t, "API error (HTTP 404): dataset not found", err.Error())
}

func TestCheckError_RawBodyFallback(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusBadGateway,
		Body:       io.NopCloser(strings.NewReader("upstream unavailable")),
	}
	err := CheckError(resp)
	require.Error(t, err)
	assert.Equal(t, "API error (HTTP 502): upstream unavailable", err.Error())
}

func TestCheckError_EmptyBody(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusInternalServerError,
		Body:       io.NopCloser(strings.NewReader("")),
	}
	err := CheckError(resp)
	require.Error(t, err)
	assert.Equal(t, "API error (HTTP 500): ", err.Error())
}

func TestAPIError_ErrorsAs(t *testing.T) {
	var base error = &APIError{HTTPStatus: 403, Code: 403, Message: "forbidden"}
	wrapped := fmt.Errorf("refresh dataset: %w", base)

	var apiErr *APIError
	require.True(t, errors.As(wrapped, &apiErr))
	assert.Equal(t, 403, apiErr.HTTPStatus)
	assert.Equal(t, "forbidden", apiErr.Message)
}

func TestReadBody_ReadsAndCloses(t *testing.T) {
	closed := false
	resp := &http.Response{
		StatusCode: http.StatusOK,
		Body: &trackingCloser{
			Reader:  strings.NewReader(`{"name":"trips"}`),
			onClose: func() { closed = true },
		},
	}

	body, err := ReadBody(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"trips"}`, string(body))
	assert.True(t, closed)
}

type trackingCloser struct {
	io.Reader
	onClose func()
}

func (t *trackingCloser) Close() error {
	t.onClose()
	return nil
}
