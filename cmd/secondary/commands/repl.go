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
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/egraph-db/secondary/pkg/common/logutil"
	"github.com/egraph-db/secondary/pkg/session"
)

func replCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Read SQL statements from stdin; a statement ends at a line containing ';'",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cmd)
			if err != nil {
				return err
			}
			return runRepl(cmd, e)
		},
	}
	return cmd
}

func runRepl(cmd *cobra.Command, e *session.Engine) error {
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	var pending strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		pending.WriteString(line)
		pending.WriteString("\n")
		if !strings.Contains(line, ";") {
			continue
		}
		stmt := strings.TrimSpace(pending.String())
		pending.Reset()
		if stmt == "" {
			continue
		}
		batches, err := e.Run(cmd.Context(), stmt)
		if err != nil {
			logutil.Errorf("statement failed: %v", err)
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		renderBatches(out, batches)
	}
	return scanner.Err()
}
