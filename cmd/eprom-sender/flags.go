// cmd/eprom-sender/flags.go
package main

import (
	"github.com/urfave/cli/v2"

	"eprom-sender/internal/protocol"
)

// globalFlags are read by the upload action and every subcommand. Give them
// before the subcommand name.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "serial port the emulator is attached to",
			Value:   protocol.DefaultPort(),
		},
		&cli.IntFlag{
			Name:    "baud",
			Aliases: []string{"b"},
			Usage:   "baud rate",
			Value:   115200,
		},
		&cli.IntFlag{
			Name:    "type",
			Aliases: []string{"t"},
			Usage:   "EPROM type (see the modes command). Defaults to 0, auto-detect from file size, on v3 and 10 on v1/v2",
		},
		&cli.IntFlag{
			Name:    "skip",
			Aliases: []string{"s"},
			Usage:   "skip `N` bytes at the start of the file",
		},
		&cli.BoolFlag{
			Name:    "lynx",
			Aliases: []string{"l"},
			Usage:   "Atari Lynx dev cart mode",
		},
		&cli.StringFlag{
			Name:  "protocol",
			Usage: "emulator protocol revision: v1, v2 or v3",
			Value: protocol.DefaultRevision,
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE`",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "only log warnings and errors",
		},
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "output format: table, json, yaml",
		Value:   "table",
	}
}
