package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/scott-cotton/cli"

	"github.com/saulx/selva/go-selva/ir"
	"github.com/saulx/selva/go-selva/system/subd/server"
	"github.com/saulx/selva/go-selva/system/subd/storage"
)

func serve(cfg *ServeConfig, cc *cli.Context, args []string) error {
	_, err := cfg.Serve.Parse(cc, args)
	if err != nil {
		return err
	}

	if err := agent.Listen(agent.Options{}); err != nil {
		theLog.Warn("gops agent failed", "error", err)
	}
	defer agent.Close()

	serverConfig := server.DefaultConfig()
	if cfg.ConfigFile != "" {
		serverConfig, err = server.LoadConfig(cfg.ConfigFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}
	if cfg.Addr != "" {
		serverConfig.Addr = cfg.Addr
	}
	if cfg.MetricsAddr != "" {
		serverConfig.MetricsAddr = cfg.MetricsAddr
	}
	if err := serverConfig.Validate(); err != nil {
		return fmt.Errorf("%w: %w", cli.ErrUsage, err)
	}

	st, err := storage.Open(serverConfig.DataDir, &storage.Options{
		InMemory: serverConfig.InMemory,
		Log:      theLog,
	})
	if err != nil {
		return err
	}
	defer st.Close()
	if cfg.Seed != "" {
		if err := seed(cfg.MainConfig, cc, st, cfg.Seed); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		storage.NewCollector(st),
	)
	srv := server.New(&server.Spec{
		Config:     serverConfig,
		Storage:    st,
		Log:        theLog,
		Registerer: reg,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Close(ctx)
	}()

	if err := srv.StartTCP(serverConfig.Addr); err != nil {
		return fmt.Errorf("failed to start TCP listener: %w", err)
	}
	theLog.Info("subd listening", "addr", srv.TCPAddr(), "commit", st.CurrentCommit())
	if serverConfig.MetricsAddr != "" {
		if _, err := srv.StartMetrics(serverConfig.MetricsAddr, reg); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	theLog.Info("shutting down")
	return nil
}

// seed stores every field of the object in path as a node.
func seed(cfg *MainConfig, cc *cli.Context, st *storage.Storage, path string) error {
	v, err := getObjFile(cfg, cc, path)
	if err != nil {
		return fmt.Errorf("error decoding %s: %w", path, err)
	}
	if v.Type != ir.ObjectType {
		return fmt.Errorf("seed %s: expected an object of node id to value, got %s", path, v.Type)
	}
	for _, id := range v.Keys() {
		if _, err := st.Put(id, v.Fields[id]); err != nil {
			return fmt.Errorf("seed %s: %w", id, err)
		}
	}
	theLog.Info("seeded", "file", path, "nodes", len(v.Fields))
	return nil
}
