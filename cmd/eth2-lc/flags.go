package main

import (
	"os"
	"path/filepath"

	"github.com/MariusVanDerWijden/eth2-lc/core"
	"github.com/urfave/cli/v2"
)

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".eth2-lc"
	}
	return filepath.Join(home, ".eth2-lc")
}

var (
	NetworkFlag = &cli.StringFlag{
		Name:  "network",
		Usage: "The network to follow",
		Value: "mainnet",
	}
	BeaconEndpointFlag = &cli.StringFlag{
		Name:    "beacon-endpoint",
		Usage:   "HTTP endpoint of the beacon node serving light client data",
		Value:   "http://localhost:5052",
		EnvVars: []string{"BEACON_ENDPOINT"},
	}
	BeaconHeaderFlag = &cli.StringSliceFlag{
		Name:  "beacon-header",
		Usage: "Extra header sent to the beacon node, as name:value",
	}
	DataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Directory of the light client database",
		Value: defaultDataDir(),
	}
	VerbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity (trace, debug, info, warn, error, fatal, panic)",
		Value: "info",
	}
	MetricsAddrFlag = &cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "Address to serve prometheus metrics on, disabled if empty",
	}
	TrustLevelFlag = &cli.StringFlag{
		Name:  "trust-level",
		Usage: "Fraction of the sync committee that has to sign an update",
		Value: core.DefaultTrustLevel.String(),
	}

	TrustedBlockRootFlag = &cli.StringFlag{
		Name:  "trusted-block-root",
		Usage: "Root of the block to bootstrap from",
	}
	UntrustedSlotFlag = &cli.Uint64Flag{
		Name:  "untrusted-slot",
		Usage: "Bootstrap from the block the beacon node reports at this slot",
	}
	TargetFlag = &cli.StringFlag{
		Name:  "target",
		Usage: "When to stop updating: none, infinity, <n>slot, <n>period or <n>bn",
		Value: "none",
	}
)

var appFlags = []cli.Flag{
	NetworkFlag,
	BeaconEndpointFlag,
	BeaconHeaderFlag,
	DataDirFlag,
	VerbosityFlag,
	MetricsAddrFlag,
	TrustLevelFlag,
}
