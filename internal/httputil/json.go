// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rotisserie/eris"
)

// maxErrorBody bounds how much of a non-200 body is quoted in an error.
const maxErrorBody = 512

// Request describes a GET or POST issued by GetJSON or PostJSON.
type Request struct {
	URL        string
	Headers    map[string]string
	MaxRetries int
}

// GetJSON issues a GET request with 429 retry and decodes a 200 response
// into v. Any other status is an error that quotes the start of the body.
func GetJSON(ctx context.Context, client *http.Client, r Request, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return eris.Wrap(err, "httputil: create request")
	}
	return doJSON(ctx, client, req, r, v)
}

// PostJSON marshals body, POSTs it with 429 retry, and decodes a 2xx
// response into v. A nil v discards the response body.
func PostJSON(ctx context.Context, client *http.Client, r Request, body, v any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "httputil: marshal body")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(data))
	if err != nil {
		return eris.Wrap(err, "httputil: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON(ctx, client, req, r, v)
}

func doJSON(ctx context.Context, client *http.Client, req *http.Request, r Request, v any) error {
	if client == nil {
		client = http.DefaultClient
	}
	req.Header.Set("Accept", "application/json")
	for k, val := range r.Headers {
		req.Header.Set(k, val)
	}

	resp, err := DoWithRetry(ctx, client, req, r.MaxRetries)
	if err != nil {
		return eris.Wrapf(err, "httputil: %s %s", req.Method, req.URL.Host)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	if v == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return eris.Wrap(err, "httputil: decode response")
	}
	return nil
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return "unexpected HTTP status " + http.StatusText(e.Code)
	}
	return "unexpected HTTP status " + http.StatusText(e.Code) + ": " + e.Body
}
