// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package records defines the student record and the wire contract shared
// by the agent and the record service.
//
// A Record is a flat, insertion-ordered mapping of attribute name to value.
// Order matters because records are rendered back to users as
// "key: value" lists and a projection must come back in request order.
package records

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// IDField is the attribute carrying the student id in class listings.
const IDField = "_id"

// Grade attribute names, in chronological order.
var GradeFields = []string{"G1", "G2", "G3"}

// Record is a single student document.
//
// The zero value is not usable; construct with NewRecord or FromPairs.
// A nil *Record means "no record" throughout the codebase.
//
// Thread Safety: Record is not safe for concurrent mutation. Records handed
// out by the cache are shared, so callers must Clone before modifying.
type Record struct {
	fields *orderedmap.OrderedMap[string, any]
}

// Field is a single name/value pair used to build records in order.
type Field struct {
	Name  string
	Value any
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{fields: orderedmap.New[string, any]()}
}

// FromPairs builds a record from ordered pairs. Later duplicates overwrite
// the value but keep the first position.
func FromPairs(pairs ...Field) *Record {
	r := NewRecord()
	for _, p := range pairs {
		r.Set(p.Name, p.Value)
	}
	return r
}

// FromMap builds a record from an unordered map, ordering keys as given by
// order first and appending anything else in undefined order.
func FromMap(m map[string]any, order []string) *Record {
	r := NewRecord()
	for _, k := range order {
		if v, ok := m[k]; ok {
			r.Set(k, v)
		}
	}
	for k, v := range m {
		if _, ok := r.Get(k); !ok {
			r.Set(k, v)
		}
	}
	return r
}

// Set assigns a value, appending the key if new.
func (r *Record) Set(name string, value any) {
	r.fields.Set(name, value)
}

// Get returns the raw value for name.
func (r *Record) Get(name string) (any, bool) {
	if r == nil {
		return nil, false
	}
	return r.fields.Get(name)
}

// Delete removes name if present.
func (r *Record) Delete(name string) {
	r.fields.Delete(name)
}

// Len returns the number of attributes.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return r.fields.Len()
}

// Empty reports whether r is nil or has no attributes.
func (r *Record) Empty() bool {
	return r.Len() == 0
}

// Keys returns attribute names in insertion order.
func (r *Record) Keys() []string {
	keys := make([]string, 0, r.Len())
	if r == nil {
		return keys
	}
	for p := r.fields.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

// Each calls fn for every attribute in insertion order until fn returns false.
func (r *Record) Each(fn func(name string, value any) bool) {
	if r == nil {
		return
	}
	for p := r.fields.Oldest(); p != nil; p = p.Next() {
		if !fn(p.Key, p.Value) {
			return
		}
	}
}

// Clone returns a shallow copy preserving order.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := NewRecord()
	r.Each(func(k string, v any) bool {
		c.Set(k, v)
		return true
	})
	return c
}

// Project returns a new record holding only the named attributes that exist,
// in the order of names.
func (r *Record) Project(names []string) *Record {
	out := NewRecord()
	if r == nil {
		return out
	}
	for _, n := range names {
		if v, ok := r.Get(n); ok {
			out.Set(n, v)
		}
	}
	return out
}

// ID returns the "_id" attribute as a string, or "" when absent.
func (r *Record) ID() string {
	if r == nil {
		return ""
	}
	v, ok := r.Get(IDField)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}

// Text returns the attribute as display text, or "" when absent.
func (r *Record) Text(name string) string {
	v, ok := r.Get(name)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return FormatValue(v)
}

// Number returns a numeric attribute as float64.
//
// Integers of any width, floats, json.Number and numeric strings are
// accepted. Missing, null and non-numeric values report false.
func (r *Record) Number(name string) (float64, bool) {
	if r == nil {
		return 0, false
	}
	v, ok := r.Get(name)
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// NumberOr returns the numeric attribute or def when missing.
func (r *Record) NumberOr(name string, def float64) float64 {
	if n, ok := r.Number(name); ok {
		return n
	}
	return def
}

// Grades returns the present G1..G3 values in order.
func (r *Record) Grades() []float64 {
	grades := make([]float64, 0, len(GradeFields))
	for _, f := range GradeFields {
		if g, ok := r.Number(f); ok {
			grades = append(grades, g)
		}
	}
	return grades
}

// MarshalJSON encodes the record as a JSON object in insertion order.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	return r.fields.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object, preserving key order.
func (r *Record) UnmarshalJSON(data []byte) error {
	r.fields = orderedmap.New[string, any]()
	return r.fields.UnmarshalJSON(data)
}

// ToFloat converts a decoded scalar to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// FormatNumber renders whole numbers without a decimal point.
func FormatNumber(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatValue renders a record value for human display.
func FormatValue(v any) string {
	if v == nil {
		return "null"
	}
	if f, ok := v.(float64); ok {
		return FormatNumber(f)
	}
	if f, ok := v.(float32); ok {
		return FormatNumber(float64(f))
	}
	return fmt.Sprint(v)
}
