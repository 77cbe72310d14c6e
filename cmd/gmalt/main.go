// Package main implements the gmalt CLI.
package main

import (
	"os"

	"github.com/l3aro/go-malt/cmd/gmalt/commands"
)

var version = "dev"

func main() {
	commands.RootCmd.Version = version
	commands.RootCmd.SetVersionTemplate("gmalt version {{.Version}}\n")

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
