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

// Command secondary is the CLI collaborator spec.md leaves external to the
// engine proper: it wires session.Engine up to a real filesystem and a
// terminal, and provides the CSV COPY collaborator via encoding/csv.
package main

import (
	"fmt"
	"os"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/egraph-db/secondary/cmd/secondary/commands"
	"github.com/egraph-db/secondary/pkg/common/logutil"
)

func main() {
	if _, err := maxprocs.Set(maxprocs.Logger(logutil.Infof)); err != nil {
		logutil.Warnf("maxprocs: %v", err)
	}

	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
