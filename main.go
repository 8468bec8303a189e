package main

import (
	"os"

	"github.com/zekimust-a11y/soundstream-sub000/cmd"
)

// Set via ldflags by goreleaser.
var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	os.Exit(main1())
}

func main1() int {
	return cmd.Execute(version, commit, date)
}
