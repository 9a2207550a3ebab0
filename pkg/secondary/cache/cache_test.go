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

package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchBlockCachesAfterFirstLoad(t *testing.T) {
	var loads int64
	c, err := New(16, 2, func(ctx context.Context, key Key) ([]byte, error) {
		atomic.AddInt64(&loads, 1)
		return []byte{byte(key.BlockID)}, nil
	})
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	data, err := c.FetchBlock(ctx, 1, 2, 3)
	require.NoError(t, err)
	require.Equal(t, []byte{3}, data)

	data2, err := c.FetchBlock(ctx, 1, 2, 3)
	require.NoError(t, err)
	require.Equal(t, data, data2)
	require.Equal(t, int64(1), atomic.LoadInt64(&loads))
}

func TestFetchBlockDeduplicatesConcurrentMisses(t *testing.T) {
	var loads int64
	release := make(chan struct{})
	c, err := New(16, 4, func(ctx context.Context, key Key) ([]byte, error) {
		atomic.AddInt64(&loads, 1)
		<-release
		return []byte{42}, nil
	})
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := c.FetchBlock(ctx, 1, 1, 1)
			require.NoError(t, err)
			require.Equal(t, []byte{42}, data)
		}()
	}
	close(release)
	wg.Wait()
	require.Equal(t, int64(1), atomic.LoadInt64(&loads))
}
