// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/scholar/pkg/records"
	"github.com/AleutianAI/scholar/services/agent/datatypes"
)

// MaxListedAtRisk caps the explicit at-risk listing.
const MaxListedAtRisk = 50

const noStudentData = "No student data available."

// =============================================================================
// Ranking
// =============================================================================

// RankedStudent is one line of a class listing.
type RankedStudent struct {
	Rank      int    `json:"rank,omitempty"`
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	// FinalGrade is the display form of G3, "N/A" when missing.
	FinalGrade string `json:"final_grade"`
}

// ClassReport is a filtered, sorted and paginated class ranking.
type ClassReport struct {
	Empty    bool                      `json:"empty"`
	Options  datatypes.AnalysisOptions `json:"options"`
	Page     int                       `json:"page"`
	PageSize int                       `json:"page_size"`
	// Matched counts students left after filtering.
	Matched   int             `json:"matched"`
	Ranked    []RankedStudent `json:"ranked"`
	Remaining int             `json:"remaining"`
	// AtRisk lists at most MaxListedAtRisk entries; AtRiskTotal counts all.
	AtRisk      []RankedStudent `json:"at_risk"`
	AtRiskTotal int             `json:"at_risk_total"`
}

// Text renders the ranking and the at-risk section.
func (c ClassReport) Text() string {
	if c.Empty {
		return noStudentData
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Class ranking by final grade (G3) — page %d (showing %d):\n", c.Page, len(c.Ranked))
	for _, s := range c.Ranked {
		fmt.Fprintf(&b, "%d. %s (%s): %s\n", s.Rank, s.Name, s.StudentID, s.FinalGrade)
	}
	if c.Remaining > 0 {
		fmt.Fprintf(&b, "... and %d more students\n", c.Remaining)
	}

	if c.AtRiskTotal == 0 {
		b.WriteString("\nNo at-risk students detected.")
		return b.String()
	}
	fmt.Fprintf(&b, "\nAt-risk students (%d):", c.AtRiskTotal)
	for _, s := range c.AtRisk {
		fmt.Fprintf(&b, "\n  - %s (%s): %s", s.Name, s.StudentID, s.FinalGrade)
	}
	if extra := c.AtRiskTotal - len(c.AtRisk); extra > 0 {
		fmt.Fprintf(&b, "\n  ... and %d more at-risk students", extra)
	}
	return b.String()
}

// ClassAnalysis ranks a class by final grade.
//
// # Description
//
// Filters apply in order: a grade threshold keeps G3 >= threshold, then
// at-risk-only keeps G3 < 10. The rest is sorted by G3 descending, keeping
// input order for ties, and cut to the requested page. At-risk entries are
// taken from the filtered set. A missing G3 ranks and filters as 0.
//
// # Inputs
//
//   - students: Listing records, expected to carry _id, name and G3.
//   - opts: Paging and filters. Zero TopN/Page mean 10 and 1.
func ClassAnalysis(students []*records.Record, opts datatypes.AnalysisOptions) ClassReport {
	report := ClassReport{
		Options:  opts,
		Page:     opts.EffectivePage(),
		PageSize: opts.EffectiveTopN(),
		Ranked:   []RankedStudent{},
		AtRisk:   []RankedStudent{},
	}
	if len(students) == 0 {
		report.Empty = true
		return report
	}

	filtered := make([]*records.Record, 0, len(students))
	for _, s := range students {
		g3 := s.NumberOr("G3", 0)
		if opts.GradeThreshold != nil && g3 < float64(*opts.GradeThreshold) {
			continue
		}
		if opts.AtRiskOnly && g3 >= AtRiskGrade {
			continue
		}
		filtered = append(filtered, s)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].NumberOr("G3", 0) > filtered[j].NumberOr("G3", 0)
	})
	report.Matched = len(filtered)

	start, end := pageBounds(len(filtered), report.Page, report.PageSize)
	for i, s := range filtered[start:end] {
		entry := rankedEntry(s)
		entry.Rank = start + i + 1
		report.Ranked = append(report.Ranked, entry)
	}
	report.Remaining = len(filtered) - end

	for _, s := range filtered {
		if s.NumberOr("G3", 0) >= AtRiskGrade {
			continue
		}
		report.AtRiskTotal++
		if len(report.AtRisk) < MaxListedAtRisk {
			report.AtRisk = append(report.AtRisk, rankedEntry(s))
		}
	}
	return report
}

func rankedEntry(s *records.Record) RankedStudent {
	id := s.ID()
	if id == "" {
		id = unknownStudent
	}
	name := s.Text("name")
	if name == "" {
		name = id
	}
	grade := "N/A"
	if v, ok := s.Get("G3"); ok && v != nil {
		grade = records.FormatValue(v)
	}
	return RankedStudent{StudentID: id, Name: name, FinalGrade: grade}
}

// =============================================================================
// Statistics
// =============================================================================

// ClassStats aggregates final grades across a class.
type ClassStats struct {
	Students      int     `json:"students"`
	Graded        int     `json:"graded"`
	Mean          float64 `json:"mean"`
	Max           float64 `json:"max"`
	Min           float64 `json:"min"`
	AtRiskCount   int     `json:"at_risk_count"`
	AtRiskPercent float64 `json:"at_risk_percent"`
}

// Text renders the statistics block.
func (s ClassStats) Text() string {
	if s.Students == 0 {
		return noStudentData
	}
	if s.Graded == 0 {
		return "No grade data available for class statistics."
	}
	return fmt.Sprintf("Class statistics (n=%d):\nAverage final grade: %.1f\nHighest: %s, Lowest: %s\nAt-risk students: %d (%.1f%%)",
		s.Students, s.Mean, records.FormatNumber(s.Max), records.FormatNumber(s.Min), s.AtRiskCount, s.AtRiskPercent)
}

// ClassStatistics computes mean, max, min and the at-risk share of G3.
// Students without a G3 count toward n and the percentage denominator but
// not toward the grade aggregates.
func ClassStatistics(students []*records.Record) ClassStats {
	stats := ClassStats{Students: len(students)}
	var sum float64
	for _, s := range students {
		g3, ok := s.Number("G3")
		if !ok {
			continue
		}
		if stats.Graded == 0 || g3 > stats.Max {
			stats.Max = g3
		}
		if stats.Graded == 0 || g3 < stats.Min {
			stats.Min = g3
		}
		stats.Graded++
		sum += g3
		if g3 < AtRiskGrade {
			stats.AtRiskCount++
		}
	}
	if stats.Graded == 0 {
		return stats
	}
	stats.Mean = sum / float64(stats.Graded)
	stats.AtRiskPercent = 100 * float64(stats.AtRiskCount) / float64(stats.Students)
	return stats
}

// ClassSummary renders the ranking followed by the statistics, which are
// computed over the full listing rather than the filtered page.
func ClassSummary(students []*records.Record, opts datatypes.AnalysisOptions) string {
	return ClassAnalysis(students, opts).Text() + "\n\n" + ClassStatistics(students).Text()
}

// =============================================================================
// Risk distribution
// =============================================================================

// RiskDistribution buckets a class by G3.
type RiskDistribution struct {
	Low       int     `json:"low"`
	Medium    int     `json:"medium"`
	High      int     `json:"high"`
	Total     int     `json:"total"`
	AverageG3 float64 `json:"average_g3"`
}

// DistributeRisk counts students with G3 >= 12 as low, 10..11 as medium and
// below 10 as high risk. A missing G3 counts as 0.
func DistributeRisk(students []*records.Record) RiskDistribution {
	d := RiskDistribution{Total: len(students)}
	if len(students) == 0 {
		return d
	}
	var sum float64
	for _, s := range students {
		g3 := s.NumberOr("G3", 0)
		sum += g3
		switch {
		case g3 >= GoodGrade:
			d.Low++
		case g3 >= AtRiskGrade:
			d.Medium++
		default:
			d.High++
		}
	}
	d.AverageG3 = round1(sum / float64(len(students)))
	return d
}

// pageBounds returns the [start, end) window of page over n items. Pages past
// the end yield an empty window at n; the arithmetic never overflows for any
// positive page and size.
func pageBounds(n, page, size int) (int, int) {
	if page-1 > n/size {
		return n, n
	}
	start := min((page-1)*size, n)
	return start, start + min(n-start, size)
}
