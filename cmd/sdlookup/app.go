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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/urfave/cli/v2"
	"github.com/xrash/smetrics"
	"sigs.k8s.io/release-utils/version"

	"github.com/ianlewis/go-stardict/internal/dictset"
	"github.com/ianlewis/go-stardict/internal/query"
)

const (
	// ExitCodeSuccess is successful error code.
	ExitCodeSuccess int = iota

	// ExitCodeFlagParseError is the exit code for a flag parsing error.
	ExitCodeFlagParseError

	// ExitCodeUnknownError is the exit code for an unknown error.
	ExitCodeUnknownError
)

// ErrFlagParse is a flag parsing error.
var ErrFlagParse = errors.New("parsing flags")

func init() {
	cli.HelpFlag = &cli.BoolFlag{
		Name:               "d41d8cd98f00b204e980",
		DisableDefaultText: true,
	}
}

// check panics if err is non-nil.
func check(err error) {
	if err != nil {
		panic(err)
	}
}

// must panics if err is non-nil, else returns val.
func must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

// interruptProgress returns a query.Progress that cancels a set-wide scan
// (fuzzy, grep) once the user sends SIGINT, printing a notice to stderr
// each time it cancels. The returned stop func must be deferred to release
// the signal handler.
func interruptProgress(c *cli.Context) (query.Progress, func()) {
	var canceled atomic.Bool
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			canceled.Store(true)
		case <-done:
		}
	}()

	progress := func(dictName string) bool {
		if canceled.Load() {
			_ = must(fmt.Fprintln(c.App.ErrWriter, "interrupted, stopping before the next dictionary"))
			return true
		}
		return false
	}
	stop := func() {
		close(done)
		signal.Stop(sigCh)
	}
	return progress, stop
}

// loadSet builds a dictionary set from the app's global --dir/--order/
// --disable flags.
func loadSet(c *cli.Context) (*dictset.Set, error) {
	set := dictset.New(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	err := set.Load(dictset.Sources{
		Directories: c.StringSlice("dir"),
		Order:       c.StringSlice("order"),
		Disable:     c.StringSlice("disable"),
	})
	return set, err
}

func newApp() *cli.App {
	return &cli.App{
		Name:  filepath.Base(os.Args[0]),
		Usage: "Look up words in installed StarDict dictionaries.",
		Description: strings.Join([]string{
			"sdlookup(1) looks up words across a set of StarDict-format dictionaries.",
			"https://github.com/ianlewis/go-stardict",
		}, "\n"),
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "dir",
				Usage:   "directory to scan for .ifo files (repeatable)",
				Aliases: []string{"d"},
			},
			&cli.StringSliceFlag{
				Name:  "order",
				Usage: "specific .ifo path to load first, in order (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "disable",
				Usage: "an .ifo path that must never be loaded (repeatable)",
			},
			&cli.BoolFlag{
				Name:               "help",
				Usage:              "print this help text and exit",
				Aliases:            []string{"h"},
				DisableDefaultText: true,
			},
			&cli.BoolFlag{
				Name:               "version",
				Usage:              "print version information and exit",
				Aliases:            []string{"v"},
				DisableDefaultText: true,
			},
		},
		Commands: []*cli.Command{
			newLookupCommand(),
			newFuzzyCommand(),
			newGlobCommand(),
			newGrepCommand(),
			newListCommand(),
		},
		Copyright:       "Google LLC",
		HideHelp:        true,
		HideHelpCommand: true,
		Action: func(c *cli.Context) error {
			if c.Bool("help") {
				check(cli.ShowAppHelp(c))
				return nil
			}
			if c.Bool("version") {
				versionInfo := version.GetVersionInfo()
				_ = must(fmt.Fprintf(c.App.Writer, "%s %s\n%s", c.App.Name, versionInfo.GitVersion, versionInfo.String()))
				return nil
			}
			return cli.ShowAppHelp(c)
		},
		CommandNotFound: func(c *cli.Context, command string) {
			best := ""
			bestScore := 0.0
			for _, cmd := range c.App.Commands {
				score := smetrics.JaroWinkler(command, cmd.Name, 0.7, 4)
				if score > bestScore {
					bestScore = score
					best = cmd.Name
				}
			}
			msg := fmt.Sprintf("%s: %q is not a command.", c.App.Name, command)
			if best != "" && bestScore > 0.7 {
				msg += fmt.Sprintf(" Did you mean %q?", best)
			}
			_ = must(fmt.Fprintln(c.App.ErrWriter, msg))
		},
		ExitErrHandler: func(c *cli.Context, err error) {
			if err == nil {
				return
			}
			_ = must(fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", c.App.Name, err))
			if errors.Is(err, ErrFlagParse) {
				cli.OsExiter(ExitCodeFlagParseError)
				return
			}
			cli.OsExiter(ExitCodeUnknownError)
		},
	}
}
