// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import "strings"

// TokenPrice is the USD price per 1,000 tokens.
type TokenPrice struct {
	Input  float64
	Output float64
}

// defaultPrice applies to models missing from the price table.
var defaultPrice = TokenPrice{Input: 0.001, Output: 0.001}

// priceTable maps a model family prefix to its price. Lookup is by prefix
// so "llama-3.3-70b-versatile" resolves to the "llama-3.3-70b" entry.
var priceTable = map[string]TokenPrice{
	"llama-3.3-70b": {Input: 0.00059, Output: 0.00079},
	"llama-3.1-8b":  {Input: 0.00005, Output: 0.00008},
	"gpt-4o-mini":   {Input: 0.00015, Output: 0.0006},
}

// PriceFor returns the price entry for model.
func PriceFor(model string) TokenPrice {
	best := ""
	for prefix := range priceTable {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return defaultPrice
	}
	return priceTable[best]
}

// EstimateCost returns the estimated USD cost of one call.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	p := PriceFor(model)
	return float64(inputTokens)/1000*p.Input + float64(outputTokens)/1000*p.Output
}
