package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	jRPC "github.com/0xPolygon/cdk-rpc/rpc"
	"github.com/sinycat/merkledrop"
	"github.com/sinycat/merkledrop/allowlist"
	"github.com/sinycat/merkledrop/batch"
	"github.com/sinycat/merkledrop/collectible"
	mdcommon "github.com/sinycat/merkledrop/common"
	"github.com/sinycat/merkledrop/config"
	"github.com/sinycat/merkledrop/db"
	"github.com/sinycat/merkledrop/drop"
	"github.com/sinycat/merkledrop/fungible"
	"github.com/sinycat/merkledrop/log"
	"github.com/sinycat/merkledrop/market"
	"github.com/sinycat/merkledrop/rpc"
	"github.com/urfave/cli/v2"
)

func start(cliCtx *cli.Context) error {
	c, err := config.Load(cliCtx)
	if err != nil {
		return err
	}

	log.Init(c.Log)

	if c.Log.Environment == log.EnvironmentDevelopment {
		merkledrop.PrintVersion(os.Stdout)
		log.Info("Starting application")
	} else if c.Log.Environment == log.EnvironmentProduction {
		logVersion()
	}

	components := cliCtx.StringSlice(config.FlagComponents)

	database, err := db.NewSQLiteDB(c.StoragePath)
	if err != nil {
		log.Fatalf("failed to open storage at %s. Err:%v", c.StoragePath, err)
	}

	funds := newFungibleLedger(*c, database)
	items := newCollectibleLedger(*c, database)
	sets := runAllowlistStoreIfNeeded(components, database)
	dropLedger := runDropIfNeeded(cliCtx.Context, components, *c, database, funds, items)
	mkt := runMarketIfNeeded(components, *c, database, funds, items)

	for _, component := range components {
		switch component {
		case mdcommon.RPC:
			executor := batch.NewExecutor(
				log.WithFields("module", mdcommon.RPC),
				database,
				funds,
				dropLedger,
				mkt,
			)
			server := createRPC(c.RPC, dropLedger, sets, mkt, executor)
			go func() {
				if err := server.Start(); err != nil {
					log.Fatal(err)
				}
			}()
		}
	}

	waitSignal(nil)

	return nil
}

func logVersion() {
	log.Infow("Starting application",
		// version is already logged by default
		"gitRevision", merkledrop.GitRev,
		"gitBranch", merkledrop.GitBranch,
		"goVersion", runtime.Version(),
		"built", merkledrop.BuildDate,
		"os/arch", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	)
}

func newFungibleLedger(c config.Config, database *sql.DB) *fungible.Ledger {
	logger := log.WithFields("module", "fungible")
	funds, err := fungible.NewLedger(logger, database, c.Common.NetworkID, c.Fungible.Token)
	if err != nil {
		log.Fatalf("error creating fungible ledger: %s", err)
	}

	return funds
}

func newCollectibleLedger(c config.Config, database *sql.DB) *collectible.Collection {
	logger := log.WithFields("module", "collectible")
	items, err := collectible.NewCollection(logger, database, c.Collectible.BaseURI)
	if err != nil {
		log.Fatalf("error creating collectible ledger: %s", err)
	}

	return items
}

func runAllowlistStoreIfNeeded(components []string, database *sql.DB) *allowlist.Store {
	if !isNeeded([]string{mdcommon.DROP, mdcommon.RPC}, components) {
		return nil
	}
	sets, err := allowlist.NewStore(log.WithFields("module", "allowlist"), database)
	if err != nil {
		log.Fatalf("error creating allowlist store: %s", err)
	}

	return sets
}

func runDropIfNeeded(
	ctx context.Context,
	components []string,
	c config.Config,
	database *sql.DB,
	funds *fungible.Ledger,
	items *collectible.Collection,
) *drop.Ledger {
	if !isNeeded([]string{mdcommon.DROP, mdcommon.RPC}, components) {
		return nil
	}
	logger := log.WithFields("module", mdcommon.DROP)
	ledger, err := drop.NewLedger(logger, database, funds, items, c.Drop)
	if err != nil {
		log.Fatalf("error creating drop ledger: %s", err)
	}
	issued, err := ledger.Issued(ctx)
	if err != nil {
		log.Fatalf("error reading drop state: %s", err)
	}
	maxSupply, err := ledger.MaxSupply(ctx)
	if err != nil {
		log.Fatalf("error reading drop state: %s", err)
	}
	logger.Infof("drop ledger ready, issued %d of %d", issued, maxSupply)

	return ledger
}

func runMarketIfNeeded(
	components []string,
	c config.Config,
	database *sql.DB,
	funds *fungible.Ledger,
	items *collectible.Collection,
) *market.Market {
	if !isNeeded([]string{mdcommon.MARKET, mdcommon.RPC}, components) {
		return nil
	}
	mkt, err := market.New(log.WithFields("module", mdcommon.MARKET), database, funds, items, c.Market)
	if err != nil {
		log.Fatalf("error creating market: %s", err)
	}

	return mkt
}

func createRPC(
	cfg jRPC.Config,
	ledger *drop.Ledger,
	sets *allowlist.Store,
	mkt *market.Market,
	executor *batch.Executor,
) *jRPC.Server {
	logger := log.WithFields("module", mdcommon.RPC)
	services := []jRPC.Service{
		{
			Name: rpc.DROP,
			Service: rpc.NewDropEndpoints(
				logger,
				cfg.WriteTimeout.Duration,
				cfg.ReadTimeout.Duration,
				ledger,
				sets,
				executor,
			),
		},
		{
			Name: rpc.MARKET,
			Service: rpc.NewMarketEndpoints(
				logger,
				cfg.WriteTimeout.Duration,
				cfg.ReadTimeout.Duration,
				mkt,
			),
		},
	}

	return jRPC.NewServer(cfg, services, jRPC.WithLogger(logger.GetSugaredLogger()))
}

func isNeeded(casesWhereNeeded, actualCases []string) bool {
	for _, actaulCase := range actualCases {
		for _, caseWhereNeeded := range casesWhereNeeded {
			if actaulCase == caseWhereNeeded {
				return true
			}
		}
	}

	return false
}

func waitSignal(cancelFuncs []context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)

	for sig := range signals {
		switch sig {
		case os.Interrupt, os.Kill:
			log.Info("terminating application gracefully...")

			exitStatus := 0
			for _, cancel := range cancelFuncs {
				cancel()
			}
			os.Exit(exitStatus)
		}
	}
}
