package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spatialmesh/stac-federator/internal/api"
	"github.com/spatialmesh/stac-federator/internal/core/config"
	"github.com/spatialmesh/stac-federator/internal/core/httpclient"
	"github.com/spatialmesh/stac-federator/internal/core/observability"
	"github.com/spatialmesh/stac-federator/internal/core/server"
	"github.com/spatialmesh/stac-federator/internal/coverage"
	"github.com/spatialmesh/stac-federator/internal/coverage/kafkaconsumer"
	"github.com/spatialmesh/stac-federator/internal/coverage/redisindex"
	"github.com/spatialmesh/stac-federator/internal/driver"
	"github.com/spatialmesh/stac-federator/internal/fetch"
	"github.com/spatialmesh/stac-federator/internal/logger"
	"github.com/spatialmesh/stac-federator/internal/manifest"
	"github.com/spatialmesh/stac-federator/internal/metrics"

	_ "github.com/spatialmesh/stac-federator/internal/drivers/earthsearch"
	_ "github.com/spatialmesh/stac-federator/internal/drivers/elevationtiles"
	_ "github.com/spatialmesh/stac-federator/internal/drivers/landsat8"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	driversFlag := flag.String("drivers", "", "path to drivers TOML file (overrides DRIVERS_FILE)")
	flag.Parse()

	cfg := config.FromEnv()
	if *driversFlag != "" {
		cfg.DriversFile = strings.TrimSpace(*driversFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "federator",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	p := metrics.Init(metrics.Config{
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})
	observability.Init(p.Registerer(), true)

	appLog.Info("starting federator", "addr", cfg.Addr, "version", Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var covIndex coverage.Index
	if cfg.Coverage.Enabled {
		ix, err := redisindex.New(ctx, cfg.Coverage.RedisAddr, redisindex.Options{
			Resolution: cfg.Coverage.Resolution,
			OpTimeout:  cfg.Coverage.OpTimeout,
		})
		if err != nil {
			appLog.Error("coverage index unavailable", "err", err)
			return 1
		}
		defer func() { _ = ix.Close() }()
		covIndex = ix

		if cfg.CoverageEvents.Enabled {
			consumer := kafkaconsumer.New(
				kafkaconsumer.Defaults(
					splitCSV(cfg.CoverageEvents.Brokers),
					cfg.CoverageEvents.Topic,
					cfg.CoverageEvents.GroupID,
				),
				appLog, covIndex,
			)
			go func() {
				if err := consumer.Start(ctx); err != nil {
					appLog.Error("coverage consumer stopped", "err", err)
				}
			}()
		}
	}

	fetchClient, err := fetch.New(httpclient.NewOutbound(), cfg.FetchCacheSize, cfg.FetchCacheTTL)
	if err != nil {
		appLog.Error("fetch client setup failed", "err", err)
		return 1
	}

	driverCfgs, err := config.LoadDrivers(cfg.DriversFile)
	if err != nil {
		appLog.Error("driver config load failed", "err", err)
		return 1
	}

	reg, err := driver.Build(driverCfgs.Drivers, driver.Env{
		Logger:   appLog,
		Fetch:    fetchClient,
		Coverage: covIndex,
	})
	if err != nil {
		appLog.Error("driver registry setup failed", "err", err)
		return 1
	}
	appLog.Info("datasources registered", "names", reg.Names())

	m := manifest.New(reg, appLog, cfg.ExecMaxWorkers, cfg.ExecTimeout)

	deps := server.Deps{
		Search:      api.NewHandler(m, appLog),
		Datasources: reg,
		Metrics:     p.Handler(),
	}
	if err := server.Run(ctx, cfg, appLog, deps); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
