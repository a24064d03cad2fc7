// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides the request-side data structures for the agent
// service: query categories, analysis options, and the HTTP DTOs.
package datatypes

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// Query Types
// =============================================================================

// QueryType is the category assigned to a query by the intent classifier.
type QueryType string

const (
	QuerySingleStudent  QueryType = "single_student"
	QueryTrend          QueryType = "trend"
	QueryDerivedMetrics QueryType = "derived_metrics"
	QueryClassSummary   QueryType = "class_summary"
)

// AllQueryTypes lists every valid QueryType.
var AllQueryTypes = []QueryType{QuerySingleStudent, QueryTrend, QueryDerivedMetrics, QueryClassSummary}

// Valid reports whether q is one of the four query categories.
func (q QueryType) Valid() bool {
	switch q {
	case QuerySingleStudent, QueryTrend, QueryDerivedMetrics, QueryClassSummary:
		return true
	}
	return false
}

// RequiresStudentID reports whether the query targets a single student.
func (q QueryType) RequiresStudentID() bool {
	switch q {
	case QuerySingleStudent, QueryTrend, QueryDerivedMetrics:
		return true
	}
	return false
}

// ParseQueryType converts a string into a QueryType.
func ParseQueryType(s string) (QueryType, error) {
	q := QueryType(strings.TrimSpace(strings.ToLower(s)))
	if !q.Valid() {
		return "", fmt.Errorf("unknown query type %q", s)
	}
	return q, nil
}

// =============================================================================
// Request
// =============================================================================

// Request is the classified query. StudentID is empty when absent.
type Request struct {
	RawInput  string
	StudentID string
	Fields    []string
}

// =============================================================================
// Analysis Options
// =============================================================================

const (
	// DefaultTopN is the class ranking page size.
	DefaultTopN = 10
	// DefaultPage is the first ranking page.
	DefaultPage = 1
)

// AnalysisOptions are advisory knobs for class-level analysis.
//
// Zero TopN and Page mean the defaults. GradeThreshold is nil when the
// query did not name one, since 0 is a legitimate threshold.
type AnalysisOptions struct {
	TopN           int  `json:"top_n,omitempty"`
	Page           int  `json:"page,omitempty"`
	AtRiskOnly     bool `json:"at_risk_only,omitempty"`
	GradeThreshold *int `json:"grade_threshold,omitempty"`
}

// EffectiveTopN returns TopN or DefaultTopN.
func (o AnalysisOptions) EffectiveTopN() int {
	if o.TopN <= 0 {
		return DefaultTopN
	}
	return o.TopN
}

// EffectivePage returns Page or DefaultPage.
func (o AnalysisOptions) EffectivePage() int {
	if o.Page <= 0 {
		return DefaultPage
	}
	return o.Page
}

// String renders the options for log lines and span attributes.
func (o AnalysisOptions) String() string {
	parts := make([]string, 0, 4)
	if o.TopN > 0 {
		parts = append(parts, "top_n="+strconv.Itoa(o.TopN))
	}
	if o.Page > 0 {
		parts = append(parts, "page="+strconv.Itoa(o.Page))
	}
	if o.AtRiskOnly {
		parts = append(parts, "at_risk_only=true")
	}
	if o.GradeThreshold != nil {
		parts = append(parts, "grade_threshold="+strconv.Itoa(*o.GradeThreshold))
	}
	return strings.Join(parts, ",")
}
