package main

import (
	"os"

	"github.com/flowshot-io/zipctx/pkg/cli"
)

func main() {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	os.Exit(cli.Execute(os.Args, wd, os.Stdout))
}
