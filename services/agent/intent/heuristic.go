// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package intent

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/AleutianAI/scholar/services/agent/datatypes"
)

// Keyword sets in precedence order. Matching is a case-insensitive
// substring test.
var (
	classKeywords   = []string{"class", "all students", "dataset", "ranking", "summary statistics", "analyze class"}
	trendKeywords   = []string{"trend", "growth", "improving", "declining", "progress"}
	derivedKeywords = []string{"alert", "risk", "metric", "derived", "behavior", "check"}
)

// Student id patterns, tried in order.
var studentIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)id\s*[:=]\s*([0-9a-f]{24})`),
	regexp.MustCompile(`(?i)student\s+([0-9a-f]{24})`),
	regexp.MustCompile(`\b([0-9a-fA-F]{24})\b`),
}

var (
	topNPattern      = regexp.MustCompile(`(?i)top\s+(\d+)`)
	pagePattern      = regexp.MustCompile(`(?i)page\s+(\d+)`)
	atRiskPattern    = regexp.MustCompile(`(?i)at[- ]?risk|struggl`)
	thresholdPattern = regexp.MustCompile(`(?i)grade\s*(?:>=\s*)?(\d+)`)
)

// HeuristicClassifier classifies with keywords and regular expressions.
//
// # Description
//
// Deterministic and stateless: the same input always yields the same
// Classification.
type HeuristicClassifier struct{}

// NewHeuristicClassifier returns the keyword classifier.
func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{}
}

// Classify implements Classifier.
func (h *HeuristicClassifier) Classify(_ context.Context, raw string) Classification {
	raw = strings.TrimSpace(raw)
	return newClassification(DetectQueryType(raw), ExtractStudentID(raw), ParseOptions(raw), ParsedByHeuristic)
}

// DetectQueryType picks the query type from keyword sets. Class keywords
// win over trend keywords, which win over derived keywords.
func DetectQueryType(raw string) datatypes.QueryType {
	lower := strings.ToLower(raw)
	switch {
	case containsAny(lower, classKeywords):
		return datatypes.QueryClassSummary
	case containsAny(lower, trendKeywords):
		return datatypes.QueryTrend
	case containsAny(lower, derivedKeywords):
		return datatypes.QueryDerivedMetrics
	default:
		return datatypes.QuerySingleStudent
	}
}

// ExtractStudentID returns the first 24-hex id found, or "".
//
// # Examples
//
//	ExtractStudentID("id: 689cef602490264c7f2dd235")       // "689cef602490264c7f2dd235"
//	ExtractStudentID("trend for student 5f43a1a8a1a1a1a1a1a1a1a1") // "5f43a1a8a1a1a1a1a1a1a1a1"
//	ExtractStudentID("show me the class")                  // ""
func ExtractStudentID(raw string) string {
	for _, re := range studentIDPatterns {
		if m := re.FindStringSubmatch(raw); m != nil {
			return m[1]
		}
	}
	return ""
}

// ParseOptions extracts the advisory class-analysis options. Each option is
// parsed independently of the query type.
func ParseOptions(raw string) datatypes.AnalysisOptions {
	var opts datatypes.AnalysisOptions
	if n, ok := firstInt(topNPattern, raw); ok {
		opts.TopN = n
	}
	if n, ok := firstInt(pagePattern, raw); ok {
		opts.Page = n
	}
	if atRiskPattern.MatchString(raw) {
		opts.AtRiskOnly = true
	}
	if n, ok := firstInt(thresholdPattern, raw); ok {
		opts.GradeThreshold = &n
	}
	return opts
}

func firstInt(re *regexp.Regexp, raw string) (int, bool) {
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
