// Copyright 2026 The go-halcyon Authors
// This file is part of the go-halcyon library.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/log"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/halcyonlabs/go-halcyon/core/aa"
)

const (
	engineDataDir     = "engine"      // engine database directory under datadir
	engineDbNamespace = "db/halcyon/" // namespace for database metrics collection
	engineDbCache     = 128           // leveldb cache size in MiB
	engineDbHandles   = 512           // leveldb open file handles
)

var (
	// Git SHA1 commit hash of the release (set via linker flags)
	gitCommit = ""
	gitDate   = ""
	// The app that holds all commands and flags.
	app *cli.App
)

func init() {
	app = cli.NewApp()
	app.Name = filepath.Base(os.Args[0])
	app.Usage = "account abstraction validation engine"
	app.Version = fmt.Sprintf("%s - %s", gitCommit, gitDate)
	app.Flags = []cli.Flag{
		configFileFlag,
		dataDirFlag,
		chainIDFlag,
		modeFlag,
		verbosityFlag,
	}
	app.Action = run
	app.Before = func(ctx *cli.Context) error {
		glogger := log.NewGlogHandler(log.StreamHandler(os.Stderr, log.TerminalFormat(false)))
		glogger.Verbosity(log.Lvl(ctx.GlobalInt(verbosityFlag.Name)))
		log.Root().SetHandler(glogger)
		return nil
	}
}

// openDatabase opens the engine's backing store, or returns nil for a
// purely in-memory run when no datadir is configured.
func openDatabase(dataDir string) (ethdb.KeyValueStore, error) {
	if dataDir == "" {
		log.Warn("No datadir configured, engine state will not persist")
		return nil, nil
	}
	path := filepath.Join(dataDir, engineDataDir)
	db, err := leveldb.New(path, engineDbCache, engineDbHandles, engineDbNamespace, false)
	if err != nil {
		return nil, fmt.Errorf("could not open database %s: %v", path, err)
	}
	log.Info("Opened engine database", "path", path)
	return db, nil
}

func run(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("usage: %s [options] <ops-file.json>", app.Name)
	}
	config, err := makeAppConfig(ctx)
	if err != nil {
		return err
	}
	engineConfig, err := makeEngineConfig(config)
	if err != nil {
		return err
	}
	db, err := openDatabase(config.DataDir)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	engine, err := aa.NewEngine(engineConfig, db)
	if err != nil {
		return err
	}
	if err := seedAccounts(engine, config.Accounts); err != nil {
		return err
	}
	burner, err := makeBurnerKey(config)
	if err != nil {
		return err
	}

	entries, err := readOpsFile(ctx.Args().First())
	if err != nil {
		return err
	}

	var receipts []*aa.Receipt
	switch config.Mode {
	case "push":
		receipts, err = runPush(engine, entries, burner)
	default:
		receipts, err = runPull(engine, entries, burner)
	}
	if err != nil {
		return err
	}

	accepted := 0
	for _, receipt := range receipts {
		if receipt.Success {
			accepted++
		}
	}
	log.Info("Processed operations", "mode", config.Mode, "total", len(receipts), "succeeded", accepted)

	out, err := json.MarshalIndent(receipts, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
