// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/adlink/internal/models"
)

// maxResponseBytes caps provider response bodies.
const maxResponseBytes = 1 << 20

// errorDecoder turns a non-2xx body into a classified error. It returns nil
// when it does not recognise the body.
type errorDecoder func(status int, body []byte) *Error

// apiClient is the HTTP plumbing shared by the platform clients.
type apiClient struct {
	platform models.Platform
	http     *http.Client
	decode   errorDecoder
}

// newRequest builds a request. body is JSON-encoded when it is not an
// io.Reader.
func (a *apiClient) newRequest(ctx context.Context, method, rawURL string, body any) (*http.Request, error) {
	var reader io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reader = b
		contentType = "application/x-www-form-urlencoded"
	default:
		payload, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "adlink/1.0")
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out (when out is non-nil).
// Failures are classified into *Error.
func (a *apiClient) do(op string, req *http.Request, out any) error {
	resp, err := a.http.Do(req)
	if err != nil {
		return transportError(a.platform, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportError(a.platform, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return a.statusError(op, resp.StatusCode, body)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		if out != nil {
			return newError(a.platform, op, ErrProviderResponse, "empty response body")
		}
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		e := newError(a.platform, op, ErrProviderResponse, "malformed response body")
		e.Status = resp.StatusCode
		e.Err = err
		return e
	}
	return nil
}

func (a *apiClient) statusError(op string, status int, body []byte) *Error {
	if a.decode != nil {
		if e := a.decode(status, body); e != nil {
			e.Platform, e.Op, e.Status = a.platform, op, status
			if status == http.StatusTooManyRequests || status >= 500 {
				e.Kind = ErrTransient
			}
			return e
		}
	}
	e := newError(a.platform, op, statusKind(status), http.StatusText(status))
	e.Status = status
	return e
}

// joinURL joins a base URL and path segments with single slashes.
func joinURL(base string, parts ...string) string {
	out := strings.TrimRight(base, "/")
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			out += "/" + p
		}
	}
	return out
}
