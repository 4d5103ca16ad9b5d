// Package rest carries the one HTTP concern the GitLab and Jira clients
// share: issue a JSON request, demand a single expected status, and surface
// the full exchange when the API answers anything else.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// StatusError reports a response whose status did not match the expected
// one. It keeps the whole exchange so the user can see exactly what was
// sent and what came back.
type StatusError struct {
	Method       string
	URL          string
	RequestBody  string
	StatusCode   int
	ResponseBody string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("request failed\nrequest: %s %s", e.Method, e.URL)
	if e.RequestBody != "" {
		msg += "\n" + e.RequestBody
	}
	msg += fmt.Sprintf("\n\nresponse status: %d\nresponse body: %s", e.StatusCode, e.ResponseBody)
	return msg
}

// Do issues a single JSON request and decodes the response into out (out
// may be nil when the body does not matter). body is marshaled as the JSON
// request payload when non-nil. A response status other than expectStatus
// yields a *StatusError.
func Do(ctx context.Context, client *http.Client, method, url string, headers http.Header, body interface{}, expectStatus int, out interface{}) error {
	var payload []byte
	var reader io.Reader
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != expectStatus {
		return &StatusError{
			Method:       method,
			URL:          url,
			RequestBody:  string(payload),
			StatusCode:   resp.StatusCode,
			ResponseBody: string(respBody),
		}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response from %s %s: %w", method, url, err)
		}
	}

	return nil
}
