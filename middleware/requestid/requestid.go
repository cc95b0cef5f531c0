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

package requestid

import (
	"context"
	"crypto/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// DefaultHeader is the header carrying the request ID.
const DefaultHeader = "X-Request-ID"

type contextKey struct{}

// Option configures the middleware.
type Option func(*config)

type config struct {
	header        string
	generator     func() string
	allowClientID bool
}

func defaultConfig() *config {
	return &config{
		header:        DefaultHeader,
		generator:     generateUUIDv7,
		allowClientID: true,
	}
}

// WithHeader sets the header read and written.
func WithHeader(name string) Option {
	return func(c *config) { c.header = name }
}

// WithGenerator sets the function producing new IDs.
func WithGenerator(fn func() string) Option {
	return func(c *config) { c.generator = fn }
}

// WithULID generates lexicographically sortable ULIDs.
func WithULID() Option {
	return WithGenerator(generateULID)
}

// WithoutClientID ignores IDs sent by clients and always generates one.
func WithoutClientID() Option {
	return func(c *config) { c.allowClientID = false }
}

func generateUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}

var (
	ulidEntropy     = ulid.Monotonic(rand.Reader, 0)
	ulidEntropyLock sync.Mutex
)

func generateULID() string {
	ulidEntropyLock.Lock()
	defer ulidEntropyLock.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}

// New returns the middleware.
func New(opts ...Option) func(http.Handler) http.Handler {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if cfg.allowClientID {
				id = r.Header.Get(cfg.header)
			}
			if id == "" {
				id = cfg.generator()
			}

			w.Header().Set(cfg.header, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, id)))
		})
	}
}

// Get returns the request ID stored in ctx, or "".
func Get(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
