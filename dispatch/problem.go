// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dispatch

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
)

// ProblemContentType is the media type of problem responses.
const ProblemContentType = "application/problem+json; charset=utf-8"

// ProblemDetail is an RFC 9457 problem detail. Extensions are written
// inline next to the standard members.
type ProblemDetail struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Status     int            `json:"status"`
	Detail     string         `json:"detail,omitempty"`
	Instance   string         `json:"instance,omitempty"`
	Extensions map[string]any `json:"-"`
}

// MarshalJSON merges Extensions into the object. Extensions cannot replace
// standard members.
func (p ProblemDetail) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"type":   p.Type,
		"title":  p.Title,
		"status": p.Status,
	}
	if p.Detail != "" {
		m["detail"] = p.Detail
	}
	if p.Instance != "" {
		m["instance"] = p.Instance
	}
	for k, v := range p.Extensions {
		switch k {
		case "type", "title", "status", "detail", "instance":
		default:
			m[k] = v
		}
	}

	return json.Marshal(m)
}

// StatusError carries the status code a failed handler wants served.
type StatusError struct {
	Code int
	Err  error
}

// Error returns a StatusError for code wrapping err.
func Error(code int, err error) error {
	return &StatusError{Code: code, Err: err}
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return http.StatusText(e.Code)
	}

	return e.Err.Error()
}

func (e *StatusError) Unwrap() error { return e.Err }

// statusOf returns the status carried by err, or 500.
func statusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) && se.Code >= 400 && se.Code <= 599 {
		return se.Code
	}

	return http.StatusInternalServerError
}

// problem builds the fallback response for status. Server errors hide the
// error text and carry an error_id to find the log entry.
func problem(r *http.Request, status int, err error) ProblemDetail {
	p := ProblemDetail{
		Type:     "about:blank",
		Title:    http.StatusText(status),
		Status:   status,
		Instance: r.URL.Path,
	}
	if status >= http.StatusInternalServerError {
		p.Extensions = map[string]any{"error_id": uuid.NewString()}
	} else if err != nil {
		p.Detail = err.Error()
	}

	return p
}

func writeProblem(w http.ResponseWriter, p ProblemDetail) error {
	w.Header().Set("Content-Type", ProblemContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(p.Status)

	return json.NewEncoder(w).Encode(p)
}
