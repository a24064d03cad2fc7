// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	errEmptyResponse = errors.New("empty response")
	errNoJSONObject  = errors.New("no JSON object found")
	errUnbalanced    = errors.New("unbalanced JSON object")
)

// LLMParseError reports a model reply that could not be used.
//
// It never reaches the pipeline: the LLM classifier absorbs it and falls
// back to the heuristic, recording Reason as the failure label.
type LLMParseError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *LLMParseError) Error() string {
	return fmt.Sprintf("llm response unusable (%s): %v", e.Reason, e.Err)
}

func (e *LLMParseError) Unwrap() error { return e.Err }

// ExtractJSON returns the first JSON object in a model reply.
//
// # Description
//
// Models often wrap JSON in a markdown fence or add a sentence before or
// after it. When the reply contains a fence, only the fenced body is
// searched. The first balanced {...} is then decoded, skipping braces that
// appear inside string literals.
//
// # Outputs
//
//   - map[string]any: Decoded object.
//   - error: The reply is empty, holds no object, or the object is malformed.
func ExtractJSON(s string) (map[string]any, error) {
	s = strings.TrimSpace(stripFence(s))
	if s == "" {
		return nil, errEmptyResponse
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, errNoJSONObject
	}
	end, err := matchingBrace(s, start)
	if err != nil {
		return nil, err
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(s[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("decode JSON object: %w", err)
	}
	return out, nil
}

// stripFence returns the body of the first ``` fence, without its language
// tag, or s unchanged when there is no fence.
func stripFence(s string) string {
	open := strings.Index(s, "```")
	if open < 0 {
		return s
	}
	body := s[open+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.Contains(body[:nl], "{") {
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return body
}

func matchingBrace(s string, start int) (int, error) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, errUnbalanced
}
