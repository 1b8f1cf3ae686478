// Package main is the entry point for the blogger launcher.
//
// The binary is installed beside the blogger package and its
// requirements.txt. It delegates everything to internal/cli and exits with
// the code that package computes.
//
// Build-time variables (version, commit, date) are injected via ldflags
// during the release process. During development, they default to "dev",
// "none", and "unknown" respectively.
package main

import (
	"os"

	"github.com/wabisoft/blogger-launcher/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	os.Exit(cli.Execute(cli.NewRootCommand(), os.Args[1:]))
}
