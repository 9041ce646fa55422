package main

import (
	"os"

	"github.com/sinycat/merkledrop"
	"github.com/sinycat/merkledrop/common"
	"github.com/sinycat/merkledrop/config"
	"github.com/sinycat/merkledrop/log"
	"github.com/urfave/cli/v2"
)

const appName = "merkledrop"

var (
	configFileFlag = cli.StringSliceFlag{
		Name:     config.FlagCfg,
		Aliases:  []string{"c"},
		Usage:    "Configuration file(s)",
		Required: true,
	}
	componentsFlag = cli.StringSliceFlag{
		Name:     config.FlagComponents,
		Aliases:  []string{"co"},
		Usage:    "List of components to run",
		Required: false,
		Value:    cli.NewStringSlice(common.DROP, common.MARKET, common.RPC),
	}
	saveConfigFlag = cli.StringFlag{
		Name:     config.FlagSaveConfigPath,
		Aliases:  []string{"s"},
		Usage:    "Save final configuration into to the indicated path (name: " + config.SaveConfigFileName + ")",
		Required: false,
	}
	minConfigFlag = cli.BoolFlag{
		Name:     config.FlagMinConfig,
		Aliases:  []string{"m"},
		Usage:    "Print only the deployment values that have no default",
		Required: false,
	}
	allowlistFileFlag = cli.StringFlag{
		Name:     config.FlagAllowlistFile,
		Aliases:  []string{"a"},
		Usage:    "File with one account per line to build the allow-list from",
		Required: true,
	}
	outputFileFlag = cli.StringFlag{
		Name:     config.FlagOutputFile,
		Aliases:  []string{"o"},
		Usage:    "Write the result to the indicated file instead of stdout",
		Required: false,
	}
)

func main() {
	app := cli.NewApp()
	app.Name = appName
	app.Version = merkledrop.Version
	flags := []cli.Flag{
		&configFileFlag,
		&componentsFlag,
		&saveConfigFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name:    "version",
			Aliases: []string{},
			Usage:   "Application version and build",
			Action:  versionCmd,
		},
		{
			Name:    "config",
			Aliases: []string{},
			Usage:   "Print the default configuration template",
			Action:  configCmd,
			Flags:   []cli.Flag{&minConfigFlag},
		},
		{
			Name:    "run",
			Aliases: []string{},
			Usage:   "Run the merkledrop node",
			Action:  start,
			Flags:   flags,
		},
		{
			Name:    "allowlist-root",
			Aliases: []string{},
			Usage:   "Build the allow-list tree from a members file and print the root with one proof per member",
			Action:  allowlistRootCmd,
			Flags:   []cli.Flag{&allowlistFileFlag, &outputFileFlag},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
		os.Exit(1)
	}
}
