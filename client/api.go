package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// apiClient talks to the HTTP API on behalf of one user.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{base: base, http: &http.Client{Timeout: 10 * time.Second}}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// do sends body as JSON and decodes a successful response into out.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var ae apiError
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &ae) == nil && ae.Message != "" {
			return errors.Errorf("%s %s: %s (%s)", method, path, ae.Message, ae.Code)
		}
		return errors.Errorf("%s %s: %s", method, path, resp.Status)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decode response")
}

func (c *apiClient) login(ctx context.Context, userID, username string) error {
	var resp struct {
		Token string `json:"token"`
	}
	req := map[string]string{"user_id": userID, "username": username}
	if err := c.do(ctx, http.MethodPost, "/login", req, &resp); err != nil {
		return err
	}
	c.token = resp.Token
	return nil
}
