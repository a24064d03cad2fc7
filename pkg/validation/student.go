// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for values that reach the
// record store: student identifiers and projected field names.
//
// Both the agent pipeline and the record service validate against the same
// pattern and allow-lists, so a request rejected by one is rejected by the
// other.
package validation

import (
	"fmt"
	"regexp"
)

// studentIDPattern matches a 24-character hexadecimal document id.
var studentIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// QueryFields is the allow-list for fields a caller may request through the
// agent. It is deliberately narrower than ProjectionFields.
var QueryFields = []string{"name", "age", "sex", "G3"}

// ProjectionFields is the allow-list of record attributes the record service
// will project.
var ProjectionFields = []string{
	"G1", "G2", "G3", "name", "age", "sex", "studytime", "absences", "failures",
	"goout", "Dalc", "Walc", "school", "address", "famsize", "Pstatus", "Medu",
	"Fedu", "Mjob", "Fjob", "reason", "guardian", "traveltime", "activities",
	"nursery", "higher", "internet", "romantic", "freetime", "health", "paid",
}

var (
	queryFieldSet      = toSet(QueryFields)
	projectionFieldSet = toSet(ProjectionFields)
)

// IsStudentID reports whether id is a well-formed 24-hex student id.
func IsStudentID(id string) bool {
	return studentIDPattern.MatchString(id)
}

// ValidateStudentID returns an error if id is empty or not 24 hex characters.
//
// Example:
//
//	if err := validation.ValidateStudentID(req.StudentID); err != nil {
//	    return nil, fmt.Errorf("lookup: %w", err)
//	}
func ValidateStudentID(id string) error {
	if id == "" {
		return fmt.Errorf("student_id cannot be empty")
	}
	if !IsStudentID(id) {
		return fmt.Errorf("invalid student_id format: %q (must be 24 hex characters)", id)
	}
	return nil
}

// IsQueryField reports whether name is on the agent-facing allow-list.
func IsQueryField(name string) bool {
	_, ok := queryFieldSet[name]
	return ok
}

// IsProjectionField reports whether name may be projected by the record service.
func IsProjectionField(name string) bool {
	_, ok := projectionFieldSet[name]
	return ok
}

// InvalidQueryFields returns the requested fields that are not on the
// agent-facing allow-list, in request order. A nil result means all passed.
func InvalidQueryFields(fields []string) []string {
	var invalid []string
	for _, f := range fields {
		if !IsQueryField(f) {
			invalid = append(invalid, f)
		}
	}
	return invalid
}

// DedupeFields removes duplicate field names, keeping first occurrence order.
// The input slice is not modified.
func DedupeFields(fields []string) []string {
	if len(fields) == 0 {
		return fields
	}
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
