package main

import (
	"os"

	"github.com/sinycat/merkledrop"
	"github.com/urfave/cli/v2"
)

func versionCmd(*cli.Context) error {
	merkledrop.PrintVersion(os.Stdout)
	return nil
}
