// Copyright 2026 The go-halcyon Authors
// This file is part of the go-halcyon library.

package main

import (
	"fmt"
	"math/big"
	"os"
	"reflect"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/naoina/toml"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/halcyonlabs/go-halcyon/core/aa"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

func loadTOMLConfig(filename string, conf interface{}) error {
	var err error
	var buf []byte
	if buf, err = os.ReadFile(filename); err == nil {
		err = tomlSettings.Unmarshal(buf, conf)
	}
	return err
}

// accountSeed pre-registers a materialized account at startup.
type accountSeed struct {
	Address string
	Owner   string
	Balance string // decimal
}

// appConfig is the TOML file shape. Addresses and keys are hex strings;
// they are resolved into the engine config before anything runs.
type appConfig struct {
	ChainID          uint64
	DataDir          string
	Mode             string // "pull" or "push"
	Engine           string
	Dispatcher       string
	SystemCaller     string
	StrictSlotNonces bool
	SignerCacheSize  int

	// BurnerKey is a throwaway signing identity for local testing.
	// Operations submitted without a signature are signed with it.
	BurnerKey string

	Accounts []accountSeed
}

var defaultAppConfig = appConfig{
	ChainID:          1337,
	Mode:             "pull",
	StrictSlotNonces: aa.DefaultConfig.StrictSlotNonces,
	SignerCacheSize:  aa.DefaultConfig.SignerCacheSize,
}

// makeAppConfig reads the TOML configuration file if specified and folds
// command line overrides on top.
func makeAppConfig(ctx *cli.Context) (*appConfig, error) {
	config := defaultAppConfig
	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		if err := loadTOMLConfig(file, &config); err != nil {
			return nil, fmt.Errorf("could not load config file %s: %v", file, err)
		}
	}
	if ctx.GlobalIsSet(dataDirFlag.Name) {
		config.DataDir = ctx.GlobalString(dataDirFlag.Name)
	}
	if ctx.GlobalIsSet(chainIDFlag.Name) {
		config.ChainID = ctx.GlobalUint64(chainIDFlag.Name)
	}
	if ctx.GlobalIsSet(modeFlag.Name) {
		config.Mode = ctx.GlobalString(modeFlag.Name)
	}
	if config.Mode != "pull" && config.Mode != "push" {
		return nil, fmt.Errorf("unknown mode %q", config.Mode)
	}
	return &config, nil
}

// makeEngineConfig resolves the engine configuration from the app config.
func makeEngineConfig(config *appConfig) (aa.Config, error) {
	cfg := aa.Config{
		ChainID:          new(big.Int).SetUint64(config.ChainID),
		StrictSlotNonces: config.StrictSlotNonces,
		SignerCacheSize:  config.SignerCacheSize,
	}
	var err error
	if cfg.Engine, err = parseAddress(config.Engine, "Engine"); err != nil {
		return cfg, err
	}
	if cfg.Dispatcher, err = parseAddress(config.Dispatcher, "Dispatcher"); err != nil {
		return cfg, err
	}
	if cfg.SystemCaller, err = parseAddress(config.SystemCaller, "SystemCaller"); err != nil {
		return cfg, err
	}
	return cfg, cfg.Sanitize()
}

func parseAddress(s, field string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s address: %q", field, s)
	}
	return common.HexToAddress(s), nil
}

// seedAccounts registers the configured accounts with the engine.
func seedAccounts(engine *aa.Engine, seeds []accountSeed) error {
	for _, seed := range seeds {
		addr, err := parseAddress(seed.Address, "account")
		if err != nil {
			return err
		}
		owner, err := parseAddress(seed.Owner, "owner")
		if err != nil {
			return err
		}
		balance := new(big.Int)
		if seed.Balance != "" {
			if _, ok := balance.SetString(seed.Balance, 10); !ok {
				return fmt.Errorf("invalid balance %q for account %s", seed.Balance, seed.Address)
			}
		}
		engine.Accounts().Register(addr, owner, balance)
	}
	return nil
}

// makeBurnerKey parses the optional burner signing key.
func makeBurnerKey(config *appConfig) (*burnerIdentity, error) {
	if config.BurnerKey == "" {
		return nil, nil
	}
	key, err := crypto.HexToECDSA(config.BurnerKey)
	if err != nil {
		return nil, fmt.Errorf("invalid burner key: %v", err)
	}
	return &burnerIdentity{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}
