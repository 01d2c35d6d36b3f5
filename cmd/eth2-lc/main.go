// Package main is a beacon chain light client. It bootstraps from a trusted
// block and follows the sync committee updates served by a beacon node.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/MariusVanDerWijden/eth2-lc/beacon"
	"github.com/MariusVanDerWijden/eth2-lc/config"
	"github.com/MariusVanDerWijden/eth2-lc/core"
	"github.com/MariusVanDerWijden/eth2-lc/db"
	"github.com/MariusVanDerWijden/eth2-lc/lightclient"
	"github.com/MariusVanDerWijden/eth2-lc/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var log = logrus.WithField("prefix", "main")

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := &cli.App{}
	app.Name = "eth2-lc"
	app.Usage = "verifies the beacon chain with the sync committee light client protocol"
	app.Flags = appFlags
	app.Commands = []*cli.Command{
		{
			Name:   "init",
			Usage:  "bootstrap the light client store",
			Flags:  []cli.Flag{TrustedBlockRootFlag, UntrustedSlotFlag},
			Action: initCmd,
		},
		{
			Name:   "update",
			Usage:  "apply light client updates until the target is reached",
			Flags:  []cli.Flag{TargetFlag},
			Action: updateCmd,
		},
		{
			Name:   "status",
			Usage:  "print the verified head of the store",
			Action: statusCmd,
		},
	}
	app.Before = func(ctx *cli.Context) error {
		level, err := logrus.ParseLevel(ctx.String(VerbosityFlag.Name))
		if err != nil {
			return err
		}
		logrus.SetLevel(level)
		formatter := new(prefixed.TextFormatter)
		formatter.TimestampFormat = "2006-01-02 15:04:05"
		formatter.FullTimestamp = true
		logrus.SetFormatter(formatter)

		if addr := ctx.String(MetricsAddrFlag.Name); addr != "" {
			startMetrics(addr)
		}
		return nil
	}
	return app
}

func startMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		log.WithField("addr", addr).Info("Starting metrics server")
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Metrics server failed")
		}
	}()
}

func parseHeaders(values []string) (map[string]string, error) {
	headers := make(map[string]string, len(values))
	for _, value := range values {
		kv := strings.SplitN(value, ":", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid beacon header %q, want name:value", value)
		}
		headers[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return headers, nil
}

func parseFraction(value string) (core.Fraction, error) {
	parts := strings.SplitN(value, "/", 2)
	if len(parts) != 2 {
		return core.Fraction{}, fmt.Errorf("invalid trust level %q, want n/d", value)
	}
	numerator, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return core.Fraction{}, errors.Wrap(err, "invalid trust level numerator")
	}
	denominator, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return core.Fraction{}, errors.Wrap(err, "invalid trust level denominator")
	}
	return core.NewFraction(numerator, denominator)
}

// openLightClient sets up the light client the commands work on. The caller
// closes the returned database.
func openLightClient(ctx *cli.Context) (*lightclient.LightClient, *config.Config, *db.Database, error) {
	network := ctx.String(NetworkFlag.Name)
	cfg, err := config.LoadNetwork(network)
	if err != nil {
		return nil, nil, nil, err
	}
	trustLevel, err := parseFraction(ctx.String(TrustLevelFlag.Name))
	if err != nil {
		return nil, nil, nil, err
	}
	headers, err := parseHeaders(ctx.StringSlice(BeaconHeaderFlag.Name))
	if err != nil {
		return nil, nil, nil, err
	}
	database, err := db.New(filepath.Join(ctx.String(DataDirFlag.Name), "lightclient"), 0, false)
	if err != nil {
		return nil, nil, nil, err
	}
	client := beacon.NewClient(ctx.String(BeaconEndpointFlag.Name), headers)
	lc := lightclient.New(cfg, network, client, database, lightclient.WithTrustLevel(trustLevel))
	return lc, cfg, database, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func initCmd(ctx *cli.Context) error {
	lc, _, database, err := openLightClient(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	var (
		trustedRoot   *common.Hash
		untrustedSlot *types.Slot
	)
	if ctx.IsSet(TrustedBlockRootFlag.Name) {
		blob, err := hexutil.Decode(ctx.String(TrustedBlockRootFlag.Name))
		if err != nil || len(blob) != common.HashLength {
			return fmt.Errorf("invalid trusted block root %q", ctx.String(TrustedBlockRootFlag.Name))
		}
		root := common.BytesToHash(blob)
		trustedRoot = &root
	} else if ctx.IsSet(UntrustedSlotFlag.Name) {
		slot := types.Slot(ctx.Uint64(UntrustedSlotFlag.Name))
		untrustedSlot = &slot
	}
	runCtx, cancel := signalContext(ctx.Context)
	defer cancel()
	_, err = lc.Init(runCtx, trustedRoot, untrustedSlot)
	return err
}

func updateCmd(ctx *cli.Context) error {
	lc, cfg, database, err := openLightClient(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	target, err := lightclient.ParseTarget(cfg, ctx.String(TargetFlag.Name))
	if err != nil {
		return err
	}
	runCtx, cancel := signalContext(ctx.Context)
	defer cancel()
	reached, err := lc.UpdateUntilTarget(runCtx, target)
	if err != nil {
		return err
	}
	status, err := lc.Status()
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"target":  target,
		"reached": reached,
		"slot":    status.FinalizedSlot,
		"period":  status.Period,
	}).Info("Finished updating")
	return nil
}

func statusCmd(ctx *cli.Context) error {
	lc, _, database, err := openLightClient(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	status, err := lc.Status()
	if err != nil {
		return err
	}
	out := ctx.App.Writer
	fmt.Fprintf(out, "finalized slot:       %d\n", status.FinalizedSlot)
	fmt.Fprintf(out, "finalized root:       %v\n", status.FinalizedRoot)
	fmt.Fprintf(out, "period:               %d\n", status.Period)
	fmt.Fprintf(out, "block number:         %d\n", status.BlockNumber)
	fmt.Fprintf(out, "execution state root: %v\n", status.ExecutionStateRoot)
	fmt.Fprintf(out, "next sync committee:  %v\n", status.HasNextSyncCommittee)
	return nil
}
