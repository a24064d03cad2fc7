// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/AleutianAI/scholar/pkg/records"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxQueryBytes bounds the raw query text accepted by /v1/ask.
	MaxQueryBytes = 4096

	// MaxRequestedFields bounds the optional fields list.
	MaxRequestedFields = 16
)

// =============================================================================
// Ask
// =============================================================================

// AskRequest is the body of POST /v1/ask.
type AskRequest struct {
	Query     string   `json:"query" validate:"required,max=4096"`
	Fields    []string `json:"fields,omitempty" validate:"omitempty,max=16"`
	RequestID string   `json:"request_id,omitempty" validate:"omitempty,uuid"`
}

// Validate checks struct tags with the shared record validator.
func (r *AskRequest) Validate() error {
	return describe(records.Validator().Struct(r))
}

// EnsureDefaults assigns a request id when the caller did not send one.
func (r *AskRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = uuid.New().String()
	}
}

// AskResponse is the body returned by POST /v1/ask.
type AskResponse struct {
	RequestID  string    `json:"request_id"`
	QueryType  QueryType `json:"query_type"`
	StudentID  string    `json:"student_id,omitempty"`
	ParsedBy   string    `json:"parsed_by"`
	Response   string    `json:"response"`
	Error      string    `json:"error,omitempty"`
	TraceID    string    `json:"trace_id,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}

// =============================================================================
// Direct analysis
// =============================================================================

// AnalyzeRequest is the body of the /v1/analyze/* endpoints.
type AnalyzeRequest struct {
	StudentID string `json:"student_id" validate:"required,student_id"`
}

// Validate checks struct tags with the shared record validator.
func (r *AnalyzeRequest) Validate() error {
	return describe(records.Validator().Struct(r))
}

// describe turns the first validator failure into a client-facing message.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch {
	case fe.Tag() == "student_id":
		return errors.New("invalid student_id format")
	case fe.Tag() == "required":
		return fmt.Errorf("%s is required", jsonName(fe.Field()))
	case fe.Tag() == "uuid":
		return fmt.Errorf("%s must be a UUID", jsonName(fe.Field()))
	case fe.Tag() == "max" && fe.Field() == "Query":
		return fmt.Errorf("query exceeds %d bytes", MaxQueryBytes)
	case fe.Tag() == "max":
		return fmt.Errorf("at most %d fields may be requested", MaxRequestedFields)
	}
	return err
}

func jsonName(field string) string {
	switch field {
	case "StudentID":
		return "student_id"
	case "RequestID":
		return "request_id"
	case "Query":
		return "query"
	}
	return field
}
