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

package mapping

import (
	"github.com/dgraph-io/ristretto/v2"
	lru "github.com/hashicorp/golang-lru"
)

// boundedCache is a cost-weighted ristretto cache. A nil *boundedCache is a
// disabled cache: every get misses and every set is dropped.
type boundedCache[V any] struct {
	cache *ristretto.Cache[string, V]
}

// newBoundedCache returns nil for a non-positive capacity.
func newBoundedCache[V any](capacity int) (*boundedCache[V], error) {
	if capacity <= 0 {
		return nil, nil
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters:        int64(capacity) * 10,
		MaxCost:            int64(capacity),
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}

	return &boundedCache[V]{cache: cache}, nil
}

func (c *boundedCache[V]) get(key string) (V, bool) {
	if c == nil {
		var zero V
		return zero, false
	}

	return c.cache.Get(key)
}

func (c *boundedCache[V]) set(key string, v V, cost int64) {
	if c == nil {
		return
	}
	c.cache.Set(key, v, max(cost, 1))
}

// wait blocks until buffered writes are applied.
func (c *boundedCache[V]) wait() {
	if c != nil {
		c.cache.Wait()
	}
}

func (c *boundedCache[V]) close() {
	if c != nil {
		c.cache.Close()
	}
}

// urlKey identifies one reverse URL build. Parameter values enter the key
// as a digest so the key stays comparable.
type urlKey struct {
	controller string
	action     string
	names      string
	digest     uint64
	encoding   string
	fragment   string
	noDefault  bool
}

// urlCache is an ARC cache of rendered URLs. A nil *urlCache is disabled.
type urlCache struct {
	arc *lru.ARCCache
}

func newURLCache(capacity int) (*urlCache, error) {
	if capacity <= 0 {
		return nil, nil
	}
	arc, err := lru.NewARC(capacity)
	if err != nil {
		return nil, err
	}

	return &urlCache{arc: arc}, nil
}

func (c *urlCache) get(key urlKey) (string, bool) {
	if c == nil {
		return "", false
	}
	v, ok := c.arc.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)

	return s, ok
}

func (c *urlCache) add(key urlKey, url string) {
	if c == nil {
		return
	}
	c.arc.Add(key, url)
}

func (c *urlCache) len() int {
	if c == nil {
		return 0
	}

	return c.arc.Len()
}
