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
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ianlewis/go-stardict/internal/query"
)

func newGrepCommand() *cli.Command {
	return &cli.Command{
		Name:      "grep",
		Usage:     "Search article bodies for dictionaries that store full-text data",
		ArgsUsage: "<tokens...>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() == 0 {
				return fmt.Errorf("%w: grep takes at least one token", ErrFlagParse)
			}
			set, err := loadSet(c)
			if err != nil {
				return err
			}

			progress, stop := interruptProgress(c)
			defer stop()

			matches, err := query.DataLookup(set, strings.Join(c.Args().Slice(), " "), progress)
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				_ = must(fmt.Fprintln(c.App.Writer, "no matches found"))
				return nil
			}
			for _, m := range matches {
				_ = must(fmt.Fprintf(c.App.Writer, "%s\t%s\n", m.DictionaryName, m.Headword))
			}
			return nil
		},
	}
}
