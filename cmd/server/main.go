package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vexlab/vexchange/params"
	"github.com/vexlab/vexchange/pkg/api"
	"github.com/vexlab/vexchange/pkg/causal"
	"github.com/vexlab/vexchange/pkg/engine"
	"github.com/vexlab/vexchange/pkg/feed"
	"github.com/vexlab/vexchange/pkg/journal"
	"github.com/vexlab/vexchange/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.LogFile)

	// ---- Matching engine with its causal clock ----
	clock := causal.NewNode("engine")
	eng := engine.New(cfg.Engine, clock, util.RealClock{}, sugar)

	// Pre-seed demo instruments; with auto-provision enabled new symbols
	// also appear on first order.
	for _, symbol := range []string{"AAPL", "GOOGL", "MSFT"} {
		eng.ProvisionSymbol(symbol)
	}

	// ---- Event sinks ----
	var sinks []api.EventSink

	if cfg.Journal.Path != "" {
		jnl, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			sugar.Fatalw("journal_open_failed", "path", cfg.Journal.Path, "err", err)
		}
		defer jnl.Close()
		sinks = append(sinks, jnl)
		sugar.Infow("journal_enabled", "path", cfg.Journal.Path)
	}

	if len(cfg.Feed.Brokers) > 0 {
		tf := feed.New(cfg.Feed.Brokers, cfg.Feed.Topic, sugar)
		defer tf.Close()
		sinks = append(sinks, tf)
		sugar.Infow("trade_feed_enabled", "brokers", cfg.Feed.Brokers, "topic", cfg.Feed.Topic)
	}

	// ---- Gateway ----
	server := api.NewServer(cfg, eng, sugar, sinks...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		errc <- server.Start(cfg.API.Addr)
	}()

	select {
	case err := <-errc:
		sugar.Fatalw("api_server_failed", "err", err)
	case <-ctx.Done():
		sugar.Info("shutting down")
	}
}
