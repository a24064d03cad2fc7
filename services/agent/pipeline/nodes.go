// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/scholar/pkg/records"
	"github.com/AleutianAI/scholar/pkg/validation"
	"github.com/AleutianAI/scholar/services/agent/analysis"
	"github.com/AleutianAI/scholar/services/agent/datatypes"
	"github.com/AleutianAI/scholar/services/agent/observability"
)

// =============================================================================
// Validation
// =============================================================================

// Validate checks the classified request before any fetch.
//
// # Description
//
// Rules apply in order and the first failure wins:
//  1. single_student, trend and derived_metrics need a student id matching
//     the 24-hex pattern.
//  2. class_summary passes immediately.
//  3. Requested fields must all be on the query allow-list. On success they
//     are deduplicated in first-occurrence order.
//
// Every call records one validation latency observation and every failure
// one failures_total increment labeled with the reason.
//
// # Outputs
//
//   - error: *ValidationError, or nil.
func Validate(state *State, m *observability.Metrics) error {
	start := time.Now()
	err := validate(state)
	m.ObserveStage(observability.NodeValidation, time.Since(start))

	var verr *ValidationError
	if errors.As(err, &verr) {
		m.RecordFailure(observability.NodeValidation, verr.Reason)
	}
	return err
}

func validate(state *State) error {
	if state.QueryType.RequiresStudentID() {
		id := state.Request.StudentID
		if id == "" {
			return &ValidationError{Reason: ReasonMissingID}
		}
		if !validation.IsStudentID(id) {
			return &ValidationError{Reason: ReasonStudentIDFormat}
		}
	}
	if state.QueryType == datatypes.QueryClassSummary {
		return nil
	}
	if invalid := validation.InvalidQueryFields(state.Request.Fields); len(invalid) > 0 {
		return &ValidationError{Reason: ReasonFieldsWhitelist, Invalid: invalid}
	}
	state.Request.Fields = validation.DedupeFields(state.Request.Fields)
	return nil
}

// =============================================================================
// Routing
// =============================================================================

// Route is the branch taken after validation.
type Route string

const (
	RouteError    Route = "error"
	RouteAnalysis Route = "analysis"
	RouteFetch    Route = "mongo"
	RouteRespond  Route = "respond"
)

// RouteFor picks the branch for state. An error always wins, then analysis,
// then a plain fetch. It has no side effects.
func RouteFor(state *State) Route {
	switch {
	case state.Err != nil:
		return RouteError
	case state.NeedsAnalysis:
		return RouteAnalysis
	case state.NeedsDB:
		return RouteFetch
	}
	return RouteRespond
}

// =============================================================================
// Analysis
// =============================================================================

const studentNotFound = "Student not found."

// Analyze runs the computation for the query type over the fetched data.
//
// A missing student yields a "not found" text rather than an error. A panic
// inside a computation is recovered into *AnalysisError.
func Analyze(state *State) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &AnalysisError{QueryType: state.QueryType, Err: fmt.Errorf("%v", r)}
		}
	}()

	id := state.Request.StudentID
	rec := state.Fetched.Student
	if state.QueryType != datatypes.QueryClassSummary && rec == nil {
		state.AnalysisResult = studentNotFound
		return nil
	}

	switch state.QueryType {
	case datatypes.QuerySingleStudent:
		summary := analysis.SummarizeStudent(rec, id)
		state.Analysis, state.AnalysisResult = summary, summary.Text()
	case datatypes.QueryTrend:
		trend := analysis.TrendForRecord(rec, id)
		state.Analysis, state.AnalysisResult = trend, trend.Text()
	case datatypes.QueryDerivedMetrics:
		report := analysis.DerivedMetrics(rec, id)
		state.Analysis, state.AnalysisResult = report, report.Text()
	case datatypes.QueryClassSummary:
		students := state.Fetched.Students
		state.Analysis = analysis.ClassAnalysis(students, state.Options)
		state.AnalysisResult = analysis.ClassSummary(students, state.Options)
	default:
		return &AnalysisError{QueryType: state.QueryType, Err: fmt.Errorf("unsupported query type %q", state.QueryType)}
	}
	return nil
}

// =============================================================================
// Response
// =============================================================================

const (
	promptForID    = "I can help, please provide a student id and fields to query."
	recordNotFound = "No record found for that student."
)

// Synthesize renders the user-facing answer. It never fetches.
//
// # Description
//
// An analysis result is returned verbatim; class listings are only ever
// rendered through Analyze. Without one, a missing record
// either prompts for an id or reports that nothing was found. A fetched
// record is rendered as "Student data: k: v; k: v", restricted to the
// requested fields when there are any.
func Synthesize(state *State) string {
	if state.AnalysisResult != "" {
		return state.AnalysisResult
	}
	rec := state.Fetched.Student
	if rec == nil {
		if state.Request.StudentID == "" {
			return promptForID
		}
		return recordNotFound
	}

	if len(state.Request.Fields) > 0 {
		rec = rec.Project(state.Request.Fields)
	}
	parts := make([]string, 0, rec.Len())
	rec.Each(func(name string, value any) bool {
		parts = append(parts, name+": "+records.FormatValue(value))
		return true
	})
	return "Student data: " + strings.Join(parts, "; ")
}

// =============================================================================
// Error node
// =============================================================================

// MaxAttempts bounds how many times a request may pass through the error
// node before it hard-stops.
const MaxAttempts = 2

const hardStopResponse = "An error occurred and we couldn't complete your request."

// HandleError turns state.Err into a user-visible response.
//
// # Description
//
// Increments AttemptCount. Past MaxAttempts the request hard-stops with a
// fixed apology and an error wrapping ErrMaxAttempts and the last cause.
// Otherwise the response is "Error: " followed by the error text.
//
// Failures of stages other than validation are counted here against the
// node that failed. Validation counts its own.
func HandleError(state *State, m *observability.Metrics) {
	state.AttemptCount++

	var verr *ValidationError
	if state.Err != nil && !errors.As(state.Err, &verr) {
		node := state.FailedNode
		if node == "" {
			node = observability.NodeError
		}
		m.RecordFailure(node, failureReason(state.Err))
	}

	if state.AttemptCount > MaxAttempts {
		if state.Err == nil {
			state.Err = ErrMaxAttempts
		} else if !errors.Is(state.Err, ErrMaxAttempts) {
			state.Err = fmt.Errorf("%w: %w", ErrMaxAttempts, state.Err)
		}
		state.HardStop = true
		state.FinalResponse = hardStopResponse
		return
	}

	if state.Err == nil {
		state.FinalResponse = "Error: " + string(observability.ReasonUnknown)
		return
	}
	state.FinalResponse = "Error: " + state.Err.Error()
}
