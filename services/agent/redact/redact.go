// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package redact strips credentials and personal data from text before it
// is sent to a language model backend.
//
// The rules live in patterns.yaml, which is embedded in the binary. Student
// ids are 24-character hex strings and are never matched.
package redact

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var defaultPatterns []byte

// Public is the classification of text no rule matches.
const Public = "public"

// ConfidenceLevel grades how specific a pattern is.
type ConfidenceLevel string

const (
	Low    ConfidenceLevel = "low"
	Medium ConfidenceLevel = "medium"
	High   ConfidenceLevel = "high"
)

// UnmarshalYAML rejects unknown confidence levels.
func (c *ConfidenceLevel) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch level := ConfidenceLevel(s); level {
	case High, Medium, Low:
		*c = level
		return nil
	default:
		return fmt.Errorf("invalid value for confidence: %q", s)
	}
}

// =============================================================================
// Rule File
// =============================================================================

type ruleFile struct {
	Classifications []Classification `yaml:"classifications"`
}

// Classification groups patterns under one sensitivity label.
type Classification struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Priority    int       `yaml:"priority"`
	Patterns    []Pattern `yaml:"patterns"`
}

// Pattern is one detection rule.
type Pattern struct {
	ID          string          `yaml:"id"`
	Description string          `yaml:"description"`
	Regex       string          `yaml:"regex"`
	Confidence  ConfidenceLevel `yaml:"confidence"`

	re *regexp.Regexp
}

// Finding records how many times a pattern matched. The matched text itself
// is never kept.
type Finding struct {
	Classification string          `json:"classification"`
	PatternID      string          `json:"pattern_id"`
	Confidence     ConfidenceLevel `json:"confidence"`
	Count          int             `json:"count"`
}

// =============================================================================
// Redactor
// =============================================================================

// Redactor applies the compiled rules.
//
// # Thread Safety
//
// Immutable after construction and safe for concurrent use.
type Redactor struct {
	classifications []Classification
}

// New returns a Redactor for the embedded rules.
func New() (*Redactor, error) {
	return FromYAML(defaultPatterns)
}

// FromYAML parses a rule file, compiles every regex and orders
// classifications from highest to lowest priority.
func FromYAML(data []byte) (*Redactor, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal redaction rules: %w", err)
	}
	for i := range file.Classifications {
		c := &file.Classifications[i]
		for j := range c.Patterns {
			p := &c.Patterns[j]
			re, err := regexp.Compile(p.Regex)
			if err != nil {
				return nil, fmt.Errorf("failed to compile pattern %s: %w", p.ID, err)
			}
			p.re = re
		}
	}
	sort.SliceStable(file.Classifications, func(i, j int) bool {
		return file.Classifications[i].Priority > file.Classifications[j].Priority
	})
	return &Redactor{classifications: file.Classifications}, nil
}

// Classify returns the name of the highest priority classification that
// matches text, or Public.
func (r *Redactor) Classify(text string) string {
	for _, c := range r.classifications {
		for _, p := range c.Patterns {
			if p.re.MatchString(text) {
				return c.Name
			}
		}
	}
	return Public
}

// Redact replaces every match with "[REDACTED:<pattern id>]".
//
// # Outputs
//
//   - string: text with matches replaced. Unchanged when nothing matched.
//   - []Finding: One entry per matching pattern, in rule order.
//
// # Examples
//
//	out, findings := r.Redact("mail jdoe@example.com about 689cef602490264c7f2dd235")
//	// out == "mail [REDACTED:EMAIL_ADDRESS] about 689cef602490264c7f2dd235"
func (r *Redactor) Redact(text string) (string, []Finding) {
	var findings []Finding
	for _, c := range r.classifications {
		for _, p := range c.Patterns {
			count := 0
			text = p.re.ReplaceAllStringFunc(text, func(string) string {
				count++
				return "[REDACTED:" + p.ID + "]"
			})
			if count > 0 {
				findings = append(findings, Finding{
					Classification: c.Name,
					PatternID:      p.ID,
					Confidence:     p.Confidence,
					Count:          count,
				})
			}
		}
	}
	return text, findings
}
