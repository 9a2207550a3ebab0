// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache is the block cache of spec.md §4.6: bounded by configured
// capacity, LRU eviction, concurrent readers, with misses dispatched to a
// blocking worker pool. Grounded on the teacher's object cache idiom
// (pkg/vm/engine/tae/tables/base.go keeps a bounded, concurrently-read
// object map) generalized to an LRU via github.com/hashicorp/golang-lru
// (present in the teacher's require block) and a blocking-I/O pool via
// github.com/panjf2000/ants/v2 (also in the teacher's require block, used
// there for background flush/merge tasks).
package cache

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/egraph-db/secondary/pkg/common/logutil"
)

// Key identifies one block, per spec.md §4.6 ("block cache, keyed by
// {rowset_id, storage_col_id, block_id}").
type Key struct {
	RowsetID  uint64
	StorageID uint64
	BlockID   int
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%d", k.RowsetID, k.StorageID, k.BlockID)
}

// Loader performs the actual blocking disk read for a cache miss.
type Loader func(ctx context.Context, key Key) ([]byte, error)

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "secondary_block_cache_hits_total",
		Help: "Number of block cache lookups served from memory.",
	})
	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "secondary_block_cache_misses_total",
		Help: "Number of block cache lookups that required a disk load.",
	})
)

func init() {
	prometheus.MustRegister(cacheHits, cacheMisses)
}

type inflightLoad struct {
	done chan struct{}
	data []byte
	err  error
}

// Cache is a bounded, concurrent block cache. Cache misses are deduplicated
// per key (concurrent requests for the same missing block share one disk
// read) and dispatched onto a blocking worker pool sized independently of
// the query executor's goroutines, per spec.md §5 ("blocking file I/O
// dispatches to a blocking worker pool").
type Cache struct {
	lru    *lru.Cache
	pool   *ants.Pool
	loader Loader

	mu       sync.Mutex
	inflight map[Key]*inflightLoad
}

// New constructs a block cache with the given entry capacity and I/O worker
// pool size.
func New(capacity, poolSize int, loader Loader) (*Cache, error) {
	l, err := lru.New(capacity)
	if err != nil {
		return nil, err
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l, pool: pool, loader: loader, inflight: make(map[Key]*inflightLoad)}, nil
}

// Close releases the worker pool.
func (c *Cache) Close() {
	c.pool.Release()
}

// FetchBlock implements rowset.BlockSource: it consults the LRU first, and
// on a miss dispatches the load to the blocking worker pool, deduplicating
// concurrent misses for the same key.
func (c *Cache) FetchBlock(ctx context.Context, rowsetID, storageColID uint64, blockID int) ([]byte, error) {
	key := Key{RowsetID: rowsetID, StorageID: storageColID, BlockID: blockID}
	if v, ok := c.lru.Get(key); ok {
		cacheHits.Inc()
		return v.([]byte), nil
	}
	cacheMisses.Inc()

	c.mu.Lock()
	load, already := c.inflight[key]
	if !already {
		load = &inflightLoad{done: make(chan struct{})}
		c.inflight[key] = load
		submitErr := c.pool.Submit(func() {
			data, err := c.loader(ctx, key)
			load.data, load.err = data, err
			if err == nil {
				c.lru.Add(key, data)
			}
			close(load.done)
			c.mu.Lock()
			delete(c.inflight, key)
			c.mu.Unlock()
		})
		if submitErr != nil {
			delete(c.inflight, key)
			c.mu.Unlock()
			logutil.Errorf("block cache: submit load for %s failed: %v", key, submitErr)
			return c.loader(ctx, key)
		}
	}
	c.mu.Unlock()

	select {
	case <-load.done:
		return load.data, load.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
