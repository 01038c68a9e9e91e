// Copyright 2024 Google LLC
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

package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ianlewis/go-stardict/internal/query"
)

func newGlobCommand() *cli.Command {
	return &cli.Command{
		Name:      "glob",
		Usage:     "List headwords across all loaded dictionaries matching a glob pattern",
		ArgsUsage: "<pattern>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("%w: glob takes exactly one pattern", ErrFlagParse)
			}
			set, err := loadSet(c)
			if err != nil {
				return err
			}

			matches, err := query.PatternLookup(set, c.Args().First())
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				_ = must(fmt.Fprintf(c.App.Writer, "%s: no matches found\n", c.Args().First()))
				return nil
			}
			for _, m := range matches {
				_ = must(fmt.Fprintln(c.App.Writer, m))
			}
			return nil
		},
	}
}
