// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package records

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/scholar/pkg/validation"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// DefaultListLimit is used by the record service when a listing request
	// omits the limit.
	DefaultListLimit = 100

	// MaxListLimit bounds a single listing request.
	MaxListLimit = 1000
)

// FetchFields is the fixed projection the agent requests for single-student
// queries. It covers every attribute the analysis engine reads.
var FetchFields = []string{
	"name", "age", "sex", "G1", "G2", "G3", "studytime", "absences", "failures", "goout", "Dalc", "Walc",
}

// ListingFields is the projection used for class listings.
var ListingFields = []string{
	IDField, "name", "G1", "G2", "G3", "studytime", "absences", "failures",
}

// =============================================================================
// Shared Validator Instance
// =============================================================================

var wireValidate *validator.Validate

func init() {
	wireValidate = validator.New()
	_ = wireValidate.RegisterValidation("student_id", func(fl validator.FieldLevel) bool {
		return validation.IsStudentID(fl.Field().String())
	})
	_ = wireValidate.RegisterValidation("projection_field", func(fl validator.FieldLevel) bool {
		return validation.IsProjectionField(fl.Field().String())
	})
}

// Validator returns the shared validator with the student_id and
// projection_field rules registered, for use by other request types.
func Validator() *validator.Validate {
	return wireValidate
}

// =============================================================================
// Entity Fetch
// =============================================================================

// QueryRequest asks the record service for one projected student record.
type QueryRequest struct {
	StudentID string   `json:"student_id" validate:"required,student_id"`
	Fields    []string `json:"fields" validate:"required,min=1,dive,projection_field"`
}

// Validate checks the request and returns a caller-facing error message.
func (r *QueryRequest) Validate() error {
	err := wireValidate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	var badFields []string
	for _, fe := range verrs {
		switch fe.Tag() {
		case "student_id":
			return fmt.Errorf("invalid student_id format")
		case "projection_field":
			badFields = append(badFields, fmt.Sprint(fe.Value()))
		case "required", "min":
			if strings.HasPrefix(fe.Field(), "StudentID") {
				return fmt.Errorf("student_id is required")
			}
			return fmt.Errorf("fields must list at least one field")
		}
	}
	if len(badFields) > 0 {
		return fmt.Errorf("invalid fields requested: [%s]", strings.Join(badFields, " "))
	}
	return err
}

// QueryResponse carries the projected record, or a nil Result when the
// student does not exist.
type QueryResponse struct {
	StudentID string  `json:"student_id"`
	Result    *Record `json:"result"`
}

// =============================================================================
// Class Listing
// =============================================================================

// ClassListRequest asks for up to Limit student records.
type ClassListRequest struct {
	Limit int `json:"limit" validate:"omitempty,gte=1,lte=1000"`
}

// Validate checks the limit range.
func (r *ClassListRequest) Validate() error {
	if err := wireValidate.Struct(r); err != nil {
		return fmt.Errorf("limit must be between 1 and %d", MaxListLimit)
	}
	return nil
}

// EffectiveLimit returns Limit, or DefaultListLimit when unset.
func (r *ClassListRequest) EffectiveLimit() int {
	if r.Limit <= 0 {
		return DefaultListLimit
	}
	return r.Limit
}

// ClassListResponse is the record service listing payload.
type ClassListResponse struct {
	Students []*Record `json:"students"`
	Count    int       `json:"count"`
}
