// Copyright 2026 The go-halcyon Authors
// This file is part of the go-halcyon library.

package main

import (
	cli "gopkg.in/urfave/cli.v1"
)

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	dataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "Directory for the engine databases (omit for in-memory)",
	}
	chainIDFlag = cli.Uint64Flag{
		Name:  "chainid",
		Usage: "Chain identity operation digests are bound to",
	}
	modeFlag = cli.StringFlag{
		Name:  "mode",
		Usage: "Protocol variant to drive: pull (dispatcher) or push (system caller)",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value: 3,
	}
)
