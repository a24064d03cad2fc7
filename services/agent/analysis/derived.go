// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/scholar/pkg/records"
)

// RiskLevel is the aggregate risk of a student.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Cue returns the bracketed display marker for the level.
func (r RiskLevel) Cue() string {
	switch r {
	case RiskHigh:
		return "[HIGH 🔴]"
	case RiskMedium:
		return "[MEDIUM 🟡]"
	default:
		return "[LOW ⚪]"
	}
}

// Alert kinds.
const (
	AlertFailure    = "failure_alert"
	AlertAttendance = "attendance_alert"
	AlertBehavior   = "behavior_alert"
	AlertAtRisk     = "at_risk"
)

// Thresholds for the behavioral alerts.
const (
	maxAbsences    = 10
	maxSocialScore = 3
	minStudyTime   = 2
)

// Alert is one fired risk condition.
type Alert struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// DerivedReport is the risk assessment of one student.
type DerivedReport struct {
	StudentID string    `json:"student_id"`
	Alerts    []Alert   `json:"alerts"`
	RiskLevel RiskLevel `json:"risk_level"`
}

// HasAlerts reports whether any condition fired.
func (d DerivedReport) HasAlerts() bool { return len(d.Alerts) > 0 }

// Text renders the alerts under the risk cue.
func (d DerivedReport) Text() string {
	if !d.HasAlerts() {
		return fmt.Sprintf("Student %s %s has no alerts.", d.StudentID, d.RiskLevel.Cue())
	}
	lines := make([]string, len(d.Alerts))
	for i, a := range d.Alerts {
		lines[i] = "- " + a.Message
	}
	return fmt.Sprintf("Student %s %s alerts:\n%s", d.StudentID, d.RiskLevel.Cue(), strings.Join(lines, "\n"))
}

// DerivedMetrics evaluates four independent alert conditions.
//
// # Description
//
//   - failure_alert: failures > 0 and studytime < 2
//   - attendance_alert: absences > 10
//   - behavior_alert: goout, Dalc or Walc > 3
//   - at_risk: G3 < 10
//
// Risk is low with no alerts, high when at_risk or attendance_alert fired,
// and medium otherwise.
//
// # Assumptions
//
// Missing numeric fields count as 0. A missing G3 is below the at-risk
// grade, so a student without a final grade is reported high risk.
func DerivedMetrics(rec *records.Record, studentID string) DerivedReport {
	d := DerivedReport{StudentID: displayID(rec, studentID), Alerts: []Alert{}, RiskLevel: RiskLow}

	failures := rec.NumberOr("failures", 0)
	studytime := rec.NumberOr("studytime", 0)
	if failures > 0 && studytime < minStudyTime {
		d.add(AlertFailure, fmt.Sprintf("failure_alert: %s failures with low study time (%sh)",
			records.FormatNumber(failures), records.FormatNumber(studytime)))
	}

	absences := rec.NumberOr("absences", 0)
	if absences > maxAbsences {
		d.add(AlertAttendance, fmt.Sprintf("attendance_alert: %s absences", records.FormatNumber(absences)))
	}

	goout := rec.NumberOr("goout", 0)
	dalc := rec.NumberOr("Dalc", 0)
	walc := rec.NumberOr("Walc", 0)
	if goout > maxSocialScore || dalc > maxSocialScore || walc > maxSocialScore {
		d.add(AlertBehavior, fmt.Sprintf("behavior_alert: goout=%s, daily_alcohol=%s, weekend_alcohol=%s",
			records.FormatNumber(goout), records.FormatNumber(dalc), records.FormatNumber(walc)))
	}

	if g3, ok := rec.Number("G3"); !ok {
		d.add(AlertAtRisk, "at_risk: final grade N/A")
	} else if g3 < AtRiskGrade {
		d.add(AlertAtRisk, fmt.Sprintf("at_risk: final grade %s", records.FormatNumber(g3)))
	}

	d.RiskLevel = riskLevel(d.Alerts)
	return d
}

func (d *DerivedReport) add(kind, message string) {
	d.Alerts = append(d.Alerts, Alert{Kind: kind, Message: message})
}

func riskLevel(alerts []Alert) RiskLevel {
	if len(alerts) == 0 {
		return RiskLow
	}
	for _, a := range alerts {
		if a.Kind == AlertAtRisk || a.Kind == AlertAttendance {
			return RiskHigh
		}
	}
	return RiskMedium
}
