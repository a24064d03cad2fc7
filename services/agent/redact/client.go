// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package redact

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/scholar/services/llm"
)

// Client redacts prompts before delegating to the wrapped LLM client.
type Client struct {
	next     llm.LLMClient
	redactor *Redactor
	logger   *slog.Logger
}

// NewClient wraps next. A nil logger discards.
func NewClient(next llm.LLMClient, redactor *Redactor, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{next: next, redactor: redactor, logger: logger}
}

// Generate implements llm.LLMClient.
func (c *Client) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (*llm.Completion, error) {
	clean, findings := c.redactor.Redact(prompt)
	if len(findings) > 0 {
		total := 0
		ids := make([]string, 0, len(findings))
		for _, f := range findings {
			total += f.Count
			ids = append(ids, f.PatternID)
		}
		trace.SpanFromContext(ctx).AddEvent("prompt.redacted",
			trace.WithAttributes(
				attribute.Int("redactions", total),
				attribute.StringSlice("patterns", ids),
			))
		c.logger.Warn("Redacted sensitive content from LLM prompt",
			"classification", findings[0].Classification,
			"redactions", total,
			"patterns", ids,
		)
	}
	return c.next.Generate(ctx, clean, params)
}

// Model implements llm.LLMClient.
func (c *Client) Model() string {
	return c.next.Model()
}

var _ llm.LLMClient = (*Client)(nil)
