package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type apiClient struct {
	http  *http.Client
	base  string
	token string
}

func clientFrom(cmd *cobra.Command) (*apiClient, error) {
	base, _ := cmd.Flags().GetString("api")
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		return nil, fmt.Errorf("no token: pass --token or set BJ_TOKEN")
	}
	return &apiClient{
		http:  &http.Client{Timeout: 15 * time.Second},
		base:  strings.TrimRight(base, "/"),
		token: token,
	}, nil
}

type apiError struct {
	Status  int
	Message string `json:"error"`
	Details string `json:"details"`
}

func (e *apiError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s (%d): %s", e.Message, e.Status, e.Details)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

func (c *apiClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{Status: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
