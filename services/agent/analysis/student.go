// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analysis computes student and class performance reports.
//
// # Description
//
// Every function is pure: it reads the records it is given and returns a
// structured result. Results expose Text() for the human-readable rendering
// used as the agent's answer, and marshal to JSON for the REST endpoints.
// Missing grade data never fails; it yields a descriptive result instead.
package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/AleutianAI/scholar/pkg/records"
)

const (
	// AtRiskGrade is the final grade below which a student is at risk.
	AtRiskGrade = 10
	// GoodGrade is the final grade needed for "good" study efficiency.
	GoodGrade = 12
	// GoodStudyTime is the study time needed for "good" study efficiency.
	GoodStudyTime = 2

	unknownStudent = "unknown"
)

// =============================================================================
// Summary
// =============================================================================

// StudentSummary is the single-student performance summary.
type StudentSummary struct {
	StudentID       string    `json:"student_id"`
	Grades          []float64 `json:"grades"`
	Average         float64   `json:"average"`
	LatestGrade     float64   `json:"latest_grade"`
	Growth          float64   `json:"growth"`
	Status          string    `json:"status"`
	StudyTime       float64   `json:"studytime"`
	StudyEfficiency string    `json:"study_efficiency"`
}

// HasGrades reports whether any of G1..G3 was present.
func (s StudentSummary) HasGrades() bool { return len(s.Grades) > 0 }

// Text renders the summary sentence.
func (s StudentSummary) Text() string {
	if !s.HasGrades() {
		return fmt.Sprintf("Student %s has no grade data.", s.StudentID)
	}
	return fmt.Sprintf(
		"Student %s has grades %s. Average: %.1f, latest grade: %s (%s). Growth from first to final: %s. Study efficiency: %s (studytime: %sh, grade: %s).",
		s.StudentID,
		formatList(s.Grades),
		s.Average,
		records.FormatNumber(s.LatestGrade),
		s.Status,
		signed(s.Growth),
		s.StudyEfficiency,
		records.FormatNumber(s.StudyTime),
		records.FormatNumber(s.LatestGrade),
	)
}

// SummarizeStudent summarizes one student record.
//
// # Inputs
//
//   - rec: The fetched record. Only G1..G3 and studytime are read.
//   - studentID: Display id. Empty uses the record's _id, then "unknown".
//
// # Outputs
//
//   - StudentSummary: Average of the present grades, growth from first to
//     last present grade, "at-risk" iff the last grade is below 10, and
//     "good" efficiency iff studytime >= 2 and the last grade >= 12.
//     Missing studytime counts as 0.
func SummarizeStudent(rec *records.Record, studentID string) StudentSummary {
	s := StudentSummary{StudentID: displayID(rec, studentID), Grades: rec.Grades()}
	if !s.HasGrades() {
		s.Grades = []float64{}
		return s
	}

	var sum float64
	for _, g := range s.Grades {
		sum += g
	}
	s.Average = sum / float64(len(s.Grades))
	s.LatestGrade = s.Grades[len(s.Grades)-1]
	s.Growth = s.LatestGrade - s.Grades[0]

	s.Status = "okay"
	if s.LatestGrade < AtRiskGrade {
		s.Status = "at-risk"
	}

	s.StudyTime = rec.NumberOr("studytime", 0)
	s.StudyEfficiency = "needs improvement"
	if s.StudyTime >= GoodStudyTime && s.LatestGrade >= GoodGrade {
		s.StudyEfficiency = "good"
	}
	return s
}

// =============================================================================
// Trend
// =============================================================================

// Trend directions.
const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"
)

const sparkGlyphs = "▁▂▃▄▅▆▇█"

// Trend is the grade trajectory of one student.
type Trend struct {
	StudentID  string    `json:"student_id"`
	Grades     []float64 `json:"grades"`
	Sufficient bool      `json:"sufficient"`
	Direction  string    `json:"trend,omitempty"`
	Arrow      string    `json:"arrow,omitempty"`
	Sparkline  string    `json:"sparkline,omitempty"`
}

// Text renders the trend sentence.
func (t Trend) Text() string {
	if !t.Sufficient {
		return fmt.Sprintf("Student %s has insufficient grade data for trend analysis.", t.StudentID)
	}
	return fmt.Sprintf("Student %s shows a %s trend %s: %s %s",
		t.StudentID, t.Direction, t.Arrow, formatList(t.Grades), t.Sparkline)
}

// DetectTrend compares the last grade with the first. At least two grades
// are required.
func DetectTrend(studentID string, grades []float64) Trend {
	t := Trend{StudentID: studentID, Grades: append([]float64{}, grades...)}
	if len(grades) < 2 {
		return t
	}

	t.Sufficient = true
	first, last := grades[0], grades[len(grades)-1]
	switch {
	case last > first:
		t.Direction, t.Arrow = TrendImproving, "↑"
	case last < first:
		t.Direction, t.Arrow = TrendDeclining, "↓"
	default:
		t.Direction, t.Arrow = TrendStable, "→"
	}
	t.Sparkline = Sparkline(grades)
	return t
}

// TrendForRecord runs DetectTrend over a record's present G1..G3.
func TrendForRecord(rec *records.Record, studentID string) Trend {
	return DetectTrend(displayID(rec, studentID), rec.Grades())
}

// Sparkline maps each value onto one of eight block glyphs, scaled between
// the sequence minimum and maximum. The span is at least 1, so a flat
// sequence renders as the lowest glyph.
//
// # Examples
//
//	Sparkline([]float64{6, 10, 10}) // "▁██"
//	Sparkline([]float64{5, 5})      // "▁▁"
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	glyphs := []rune(sparkGlyphs)
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := math.Max(1, hi-lo)

	var b strings.Builder
	for _, v := range values {
		idx := int((v - lo) / span * float64(len(glyphs)-1))
		b.WriteRune(glyphs[idx])
	}
	return b.String()
}

// =============================================================================
// Helpers
// =============================================================================

func displayID(rec *records.Record, studentID string) string {
	if studentID != "" {
		return studentID
	}
	if id := rec.ID(); id != "" {
		return id
	}
	return unknownStudent
}

// formatList renders values as "[a, b, c]".
func formatList(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = records.FormatNumber(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// signed renders a number with an explicit sign, "+0" for zero.
func signed(v float64) string {
	if v >= 0 {
		return "+" + records.FormatNumber(v)
	}
	return records.FormatNumber(v)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
