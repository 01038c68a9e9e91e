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

func newFuzzyCommand() *cli.Command {
	return &cli.Command{
		Name:      "fuzzy",
		Usage:     "Find the k nearest headwords to a word by bounded edit distance",
		ArgsUsage: "<word>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "max",
				Usage:   "maximum number of matches to return",
				Aliases: []string{"k"},
				Value:   10,
			},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("%w: fuzzy takes exactly one word", ErrFlagParse)
			}
			set, err := loadSet(c)
			if err != nil {
				return err
			}

			word := c.Args().First()
			k := c.Int("max")

			progress, stop := interruptProgress(c)
			defer stop()

			var any bool
			for _, d := range set.Dicts() {
				matches, err := query.FuzzyLookup(d, word, k, progress)
				if err != nil {
					return err
				}
				for _, m := range matches {
					any = true
					_ = must(fmt.Fprintf(c.App.Writer, "%s\t%s\t%d\n", d.Name(), m.Headword, m.Distance))
				}
			}
			if !any {
				_ = must(fmt.Fprintf(c.App.Writer, "%s: no matches found\n", word))
			}
			return nil
		},
	}
}
