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

import "net/http"

type tracker interface {
	wroteHeader() bool
}

// responseWriter records the status written.
type responseWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *responseWriter) WriteHeader(code int) {
	if w.written {
		return
	}
	w.status = code
	w.written = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}

	return w.ResponseWriter.Write(b)
}

// Status returns the status written, or 200 if nothing was written.
func (w *responseWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}

	return w.status
}

func (w *responseWriter) wroteHeader() bool { return w.written }

func (w *responseWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// statusWriter forces code on whatever a status handler writes.
type statusWriter struct {
	http.ResponseWriter
	code    int
	written bool
}

func (w *statusWriter) WriteHeader(int) {
	if w.written {
		return
	}
	w.written = true
	w.ResponseWriter.WriteHeader(w.code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.WriteHeader(w.code)

	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) wroteHeader() bool { return w.written }

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
