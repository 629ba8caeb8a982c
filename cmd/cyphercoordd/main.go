// Command cyphercoordd runs the query coordinator as a standalone daemon:
// it loads configuration, prepares the working directory layout, wires the
// coordinator, and serves until terminated. It ships with the in-memory
// enginemock.Database as a placeholder connector — cyphercoord never binds
// a concrete graph engine itself (see engine.Open's doc comment) — so a
// real deployment supplies its own engine.Database before this becomes
// more than a smoke-test binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/graphkit/cyphercoord/bootstrap"
	"github.com/graphkit/cyphercoord/config"
	"github.com/graphkit/cyphercoord/coordinator"
	"github.com/graphkit/cyphercoord/engine/enginemock"
	"github.com/graphkit/cyphercoord/logging"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML/JSON config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cyphercoordd: loading config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, os.Stdout)

	root, err := bootstrap.EnsureLayout(cfg.WorkingDir)
	if err != nil {
		log.Error("failed to prepare working directory", logging.Error(err))
		os.Exit(1)
	}
	log.Info("working directory ready", logging.String("path", root))

	schema := bootstrap.BuildFixedSchema(nil, nil)
	db := enginemock.NewDatabase(nil)

	coord := coordinator.New(cfg, db, schema, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	coord.Start(ctx)
	log.Info("cyphercoordd started", logging.String("health", coord.Health().String()))

	<-ctx.Done()
	log.Info("shutting down")
	coord.Stop()
}
