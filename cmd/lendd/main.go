package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nftlend/config"
	"nftlend/native/common"
	"nftlend/observability/logging"
	"nftlend/rpc"
	"nftlend/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	memory := flag.Bool("memory", false, "DEV ONLY: use an in-memory store instead of the data directory")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("LEND_ENV"))
	logger := logging.Setup("lendd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	var db storage.Database
	if *memory {
		logger.Warn("running with in-memory storage; state will not survive restarts")
		db = storage.NewMemDB()
	} else {
		ldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			logger.Error("failed to open data directory", slog.String("path", cfg.DataDir), slog.Any("error", err))
			os.Exit(1)
		}
		db = ldb
	}
	defer db.Close()

	if cfg.MetricsAddress != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("serving metrics", slog.String("addr", cfg.MetricsAddress))
			if err := http.ListenAndServe(cfg.MetricsAddress, mux); err != nil {
				logger.Error("metrics listener failed", slog.Any("error", err))
			}
		}()
	}

	server := rpc.NewServer(db,
		rpc.WithLogger(logger),
		rpc.WithParams(cfg.Lending),
		rpc.WithPauses(common.StaticPauses(cfg.Pauses())),
	)
	logger.Info("lend daemon ready", slog.String("rpc", cfg.RPCAddress), slog.String("env", env))
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server failed", slog.Any("error", err))
		os.Exit(1)
	}
}
