// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline runs a question through the agent's fixed stage order:
// intent, validation, routing, fetch, optional analysis, and response, with
// an error node that any failing stage hands off to.
//
// Each request owns one *State which every stage mutates in place. Nothing
// in the package keeps per-request data between calls.
package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/scholar/services/agent/datastore"
	"github.com/AleutianAI/scholar/services/agent/datatypes"
	"github.com/AleutianAI/scholar/services/agent/observability"
)

// =============================================================================
// State
// =============================================================================

// State is the per-request context threaded through every stage.
//
// # Description
//
// The intent stage fills Request, QueryType, Options and the routing flags.
// The fetch stage fills Fetched, the analysis stage fills AnalysisResult and
// Analysis, and the response stage fills FinalResponse. Err is set by the
// first stage that fails and FailedNode names that stage.
//
// # Thread Safety
//
// Not safe for concurrent use. A State belongs to one request.
type State struct {
	Request   datatypes.Request
	QueryType datatypes.QueryType
	Options   datatypes.AnalysisOptions

	// ParsedBy is "llm" or "heuristic".
	ParsedBy       string
	FallbackReason string
	NeedsDB        bool
	NeedsAnalysis  bool

	Fetched datastore.Fetched

	// AnalysisResult is the rendered analysis text. Analysis holds the
	// structured value it was rendered from.
	AnalysisResult string
	Analysis       any

	FinalResponse string

	Err          error
	FailedNode   observability.Node
	AttemptCount int
	// HardStop is set once the attempt bound is exceeded.
	HardStop bool

	TraceID string
}

// Failed reports whether any stage recorded an error.
func (s *State) Failed() bool {
	return s.Err != nil
}

// fail records err against node unless an earlier failure already did.
func (s *State) fail(node observability.Node, err error) {
	if s.Err != nil {
		return
	}
	s.Err = err
	s.FailedNode = node
}

// =============================================================================
// Errors
// =============================================================================

// Validation failure reasons.
const (
	ReasonMissingID       = "missing_id"
	ReasonStudentIDFormat = "student_id_format"
	ReasonFieldsWhitelist = "fields_whitelist"
)

// ValidationError is a request rejected before any fetch.
type ValidationError struct {
	// Reason is one of the Reason* constants.
	Reason string
	// Invalid lists the offending fields for ReasonFieldsWhitelist.
	Invalid []string
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonMissingID:
		return "missing student_id for this query type"
	case ReasonStudentIDFormat:
		return "invalid student_id format"
	case ReasonFieldsWhitelist:
		return fmt.Sprintf("invalid fields requested: [%s]", strings.Join(e.Invalid, " "))
	}
	return "validation failed: " + e.Reason
}

// AnalysisError is an unexpected failure inside an analysis computation.
type AnalysisError struct {
	QueryType datatypes.QueryType
	Err       error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed: %v", e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// ErrMaxAttempts is the terminal error once the error node's attempt bound
// is exceeded.
var ErrMaxAttempts = errors.New("maximum attempts exceeded")

// failureReason maps a stage error onto the failures_total reason label.
func failureReason(err error) string {
	var verr *ValidationError
	var aerr *AnalysisError
	var ferr *datastore.FetchError
	var terr *datastore.TransportError
	switch {
	case errors.As(err, &verr):
		return verr.Reason
	case errors.As(err, &aerr):
		return string(observability.ReasonAnalysis)
	case datastore.IsTimeout(err):
		return string(observability.ReasonTimeout)
	case errors.As(err, &ferr), errors.As(err, &terr):
		return string(observability.ReasonFetch)
	}
	return string(observability.ReasonUnknown)
}
