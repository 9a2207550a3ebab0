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

// Package commands holds the secondary CLI's cobra command tree.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/egraph-db/secondary/pkg/common/config"
	"github.com/egraph-db/secondary/pkg/secondary"
	"github.com/egraph-db/secondary/pkg/session"
)

// Root builds the secondary command tree: repl, exec, import-csv, export-csv.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secondary",
		Short: "Embedded analytical SQL engine",
		Long:  "secondary is the CLI front end for the egraph-db/secondary embedded engine",
	}
	cmd.PersistentFlags().String("data-dir", "./data", "storage root directory")
	cmd.PersistentFlags().String("config", "", "path to a TOML config file (overrides defaults)")

	cmd.AddCommand(replCommand())
	cmd.AddCommand(execCommand())
	cmd.AddCommand(importCSVCommand())
	cmd.AddCommand(exportCSVCommand())
	return cmd
}

func openEngine(cmd *cobra.Command) (*session.Engine, error) {
	dataDir, err := cmd.Flags().GetString("data-dir")
	if err != nil {
		return nil, err
	}
	cfgPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg := config.Default()
	if cfgPath != "" {
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return nil, err
		}
	}
	cfg.Storage.Path = dataDir
	store := secondary.DiskStore{Root: dataDir}
	return session.NewEngine(cfg, store)
}
