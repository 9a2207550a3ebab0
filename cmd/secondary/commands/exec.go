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
	"github.com/spf13/cobra"

	"github.com/egraph-db/secondary/pkg/common/logutil"
)

func execCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <sql>",
		Short: "Run one SQL statement and print its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cmd)
			if err != nil {
				return err
			}
			out, err := e.Run(cmd.Context(), args[0])
			if err != nil {
				logutil.Errorf("exec failed: %v", err)
				return err
			}
			renderBatches(cmd.OutOrStdout(), out)
			return nil
		},
	}
	return cmd
}
