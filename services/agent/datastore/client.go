// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datastore is the agent's access path to the record service.
//
// Client speaks the record service's JSON protocol. CachedFetcher adds the
// result cache, the per-call timeout and the fetch-stage instrumentation.
package datastore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AleutianAI/scholar/pkg/records"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4096

// Client calls the record service endpoints.
//
// # Thread Safety
//
// Safe for concurrent use.
type Client struct {
	httpClient *http.Client
}

// NewClient wraps httpClient. Nil builds a client whose transport propagates
// trace context to the record service.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &Client{httpClient: httpClient}
}

// FetchStudent requests one student projected onto fields.
//
// # Outputs
//
//   - *records.Record: The projected record, or nil when the student does
//     not exist.
//   - error: *FetchError for a non-2xx answer, *TransportError otherwise.
func (c *Client) FetchStudent(ctx context.Context, baseURL, studentID string, fields []string) (*records.Record, error) {
	var resp records.QueryResponse
	req := records.QueryRequest{StudentID: studentID, Fields: fields}
	if err := c.post(ctx, joinURL(baseURL, "/query"), req, &resp); err != nil {
		return nil, err
	}
	if resp.Result.Empty() {
		return nil, nil
	}
	return resp.Result, nil
}

// ListStudents requests up to limit student records.
func (c *Client) ListStudents(ctx context.Context, baseURL string, limit int) ([]*records.Record, error) {
	var resp records.ClassListResponse
	if err := c.post(ctx, joinURL(baseURL, "/class_analysis"), records.ClassListRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	if resp.Students == nil {
		resp.Students = []*records.Record{}
	}
	return resp.Students, nil
}

func (c *Client) post(ctx context.Context, url string, payload, out any) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal record service request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payloadBytes))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &TransportError{Op: "POST " + url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &FetchError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: "read response", Err: err}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &TransportError{Op: "decode response", Err: err}
	}
	return nil
}

func joinURL(baseURL, path string) string {
	return strings.TrimSuffix(baseURL, "/") + path
}
