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

// Package config holds the recognized engine options of spec.md §6.5.
package config

import (
	"github.com/BurntSushi/toml"
)

// ChecksumKind selects the block checksum scheme, spec.md §3.3/§4.6.
type ChecksumKind string

const (
	ChecksumNone    ChecksumKind = "none"
	ChecksumCRC32C  ChecksumKind = "crc32c"
)

// Config is the full set of recognized engine options.
type Config struct {
	Storage   StorageConfig   `toml:"storage"`
	Optimizer OptimizerConfig `toml:"optimizer"`
	Executor  ExecutorConfig  `toml:"executor"`
	TZ        TZConfig        `toml:"tz"`
}

type StorageConfig struct {
	Path                string       `toml:"path"`
	BlockSizeTarget     int          `toml:"block_size_target"`
	BlockCacheCapacity  int          `toml:"block_cache_capacity"`
	Checksum            ChecksumKind `toml:"checksum"`
}

type OptimizerConfig struct {
	EnableRangeFilterScan      bool `toml:"enable_range_filter_scan"`
	TableIsSortedByPrimaryKey  bool `toml:"table_is_sorted_by_primary_key"`
	IterLimitPerStage          int  `toml:"iter_limit_per_stage"`
}

type ExecutorConfig struct {
	BatchSize            int   `toml:"batch_size"`
	HashJoinMemoryLimit   int64 `toml:"hash_join_memory_limit"`
}

type TZConfig struct {
	OffsetSeconds int `toml:"offset_seconds"`
}

// Default returns the engine's default configuration, matching the defaults
// named in spec.md §6.5 and §3.2.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:               "./data",
			BlockSizeTarget:    64 * 1024,
			BlockCacheCapacity: 4096,
			Checksum:           ChecksumCRC32C,
		},
		Optimizer: OptimizerConfig{
			EnableRangeFilterScan:     true,
			TableIsSortedByPrimaryKey: false,
			IterLimitPerStage:         10,
		},
		Executor: ExecutorConfig{
			BatchSize:           2048,
			HashJoinMemoryLimit: 256 << 20,
		},
	}
}

// Load reads a TOML config file on top of Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
