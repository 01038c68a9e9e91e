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

func newLookupCommand() *cli.Command {
	return &cli.Command{
		Name:      "lookup",
		Usage:     "Look up a word, following the similar-word cascade on a miss",
		ArgsUsage: "<word>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("%w: lookup takes exactly one word", ErrFlagParse)
			}
			set, err := loadSet(c)
			if err != nil {
				return err
			}

			results, err := query.Translate(set, c.Args().First())
			if err != nil {
				return err
			}
			if len(results) == 0 {
				_ = must(fmt.Fprintf(c.App.Writer, "%s: no matches found\n", c.Args().First()))
				return nil
			}
			for _, r := range results {
				_ = must(fmt.Fprintf(c.App.Writer, "%s (%s)\n%s\n\n", r.Title, r.DictionaryName, r.Translation))
			}
			return nil
		},
	}
}
