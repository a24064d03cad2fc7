// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intent turns a free-text question into a classified request.
//
// # Description
//
// Two strategies implement Classifier. HeuristicClassifier uses keyword
// sets and regular expressions and is fully deterministic. LLMClassifier asks
// a language model for the query type and student id and falls back to the
// heuristic on any failure, so Classify never returns an error.
package intent

import (
	"context"

	"github.com/AleutianAI/scholar/services/agent/datatypes"
)

// ParsedBy values.
const (
	ParsedByLLM       = "llm"
	ParsedByHeuristic = "heuristic"
)

// Classification is the output of a Classifier.
type Classification struct {
	QueryType datatypes.QueryType
	// StudentID is empty when the query names no student.
	StudentID string
	Options   datatypes.AnalysisOptions
	// ParsedBy is "llm" or "heuristic".
	ParsedBy      string
	NeedsDB       bool
	NeedsAnalysis bool
	// FallbackReason is set when an LLM classifier had to use the heuristic.
	FallbackReason string
}

// Classifier resolves the query type and student id of a question.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Classifier interface {
	// Classify never fails. Unusable input yields a single_student
	// classification with no id, which validation then rejects.
	Classify(ctx context.Context, raw string) Classification
}

// NeedsAnalysis reports whether a classified query goes through the analysis
// stage. Every multi-record or derived query does, and a single-student
// query does once it names a student.
func NeedsAnalysis(qt datatypes.QueryType, studentID string) bool {
	switch qt {
	case datatypes.QueryTrend, datatypes.QueryDerivedMetrics, datatypes.QueryClassSummary:
		return true
	case datatypes.QuerySingleStudent:
		return studentID != ""
	}
	return false
}

// newClassification fills the derived flags.
func newClassification(qt datatypes.QueryType, studentID string, opts datatypes.AnalysisOptions, parsedBy string) Classification {
	return Classification{
		QueryType:     qt,
		StudentID:     studentID,
		Options:       opts,
		ParsedBy:      parsedBy,
		NeedsDB:       true,
		NeedsAnalysis: NeedsAnalysis(qt, studentID),
	}
}
