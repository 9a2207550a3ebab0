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

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/egraph-db/secondary/pkg/common/logutil"
	"github.com/egraph-db/secondary/pkg/session"
)

func importCSVCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-csv <table> <file.csv>",
		Short: "Bulk-load a CSV file's rows into an existing table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cmd)
			if err != nil {
				return err
			}
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			n, err := e.CopyFrom(cmd.Context(), args[0], session.NewCSVSource(f))
			if err != nil {
				logutil.Errorf("import-csv failed: %v", err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d rows loaded\n", n)
			return nil
		},
	}
	return cmd
}

func exportCSVCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-csv <table> <file.csv>",
		Short: "Dump an existing table's rows to a CSV file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cmd)
			if err != nil {
				return err
			}
			f, err := os.Create(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			sink := session.NewCSVSink(f)
			if err := e.CopyTo(cmd.Context(), args[0], sink); err != nil {
				logutil.Errorf("export-csv failed: %v", err)
				return err
			}
			return sink.Flush()
		},
	}
	return cmd
}
