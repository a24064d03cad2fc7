// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"strings"
	"time"
)

// Answer is what the CLI shows for one answered question.
type Answer struct {
	QueryType string
	StudentID string
	ParsedBy  string
	Response  string
	Error     string
	TraceID   string
	Duration  time.Duration
}

// Answer prints a in a box followed by a muted metadata line. A failed
// answer uses the error box.
func (p *Printer) Answer(a Answer) {
	title := a.QueryType
	if title == "" {
		title = "answer"
	}
	if a.Error != "" {
		p.ErrorBox(title, a.Response)
	} else {
		p.Box(title, a.Response)
	}

	meta := answerMeta(a)
	if p.plain {
		fmt.Fprintln(p.out, meta)
		return
	}
	fmt.Fprintln(p.out, Styles.Muted.Render(meta))
}

// answerMeta renders "key=value" pairs for the non-empty fields.
func answerMeta(a Answer) string {
	parts := []string{"parsed_by=" + a.ParsedBy}
	if a.StudentID != "" {
		parts = append(parts, "student_id="+a.StudentID)
	}
	if a.Error != "" {
		parts = append(parts, "error="+a.Error)
	}
	if a.TraceID != "" {
		parts = append(parts, "trace_id="+a.TraceID)
	}
	parts = append(parts, "duration="+a.Duration.Round(time.Millisecond).String())
	return strings.Join(parts, " ")
}
