// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datastore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// FetchError is a non-2xx answer from the record service.
type FetchError struct {
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("record service error: %d %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Class returns "server" for 5xx answers and "rejected" otherwise.
func (e *FetchError) Class() string {
	if e.StatusCode >= 500 {
		return "server"
	}
	return "rejected"
}

// TransportError is a failure to reach the record service or to read its
// answer.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("record service request failed: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// IsTimeout reports whether err is a TransportError caused by a deadline.
func IsTimeout(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Timeout()
}
