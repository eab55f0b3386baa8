package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/talkincode/shopsync/config"
	"github.com/talkincode/shopsync/internal/adminapi"
	"github.com/talkincode/shopsync/internal/app"
	"github.com/talkincode/shopsync/internal/webserver"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	cfile   = flag.String("c", "", "config yaml file")
	initcfg = flag.Bool("initcfg", false, "print a default config and exit")
	audit   = flag.Bool("audit", false, "run a catalog audit and exit")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	if *initcfg {
		data, err := yaml.Marshal(config.DefaultAppConfig)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0
	}

	cfg, err := config.LoadConfig(*cfile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	application := app.NewApplication(cfg)
	if err := application.Init(cfg); err != nil {
		zap.L().Error("init failed", zap.Error(err))
		return 1
	}
	defer application.Release()

	if *audit {
		report, err := application.RunAudit(context.Background())
		if err != nil {
			return 1
		}
		data, _ := yaml.Marshal(report)
		fmt.Print(string(data))
		return 0
	}

	srv, err := webserver.NewAdminServer(cfg)
	if err != nil {
		zap.L().Error("web server setup failed", zap.Error(err))
		return 1
	}
	adminapi.Init(srv, application.SyncService())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			zap.L().Error("web server stopped", zap.Error(err))
			return 1
		}
	case <-ctx.Done():
		zap.L().Info("shutting down")
		if err := srv.Shutdown(context.Background()); err != nil {
			zap.L().Warn("shutdown", zap.Error(err))
		}
	}
	return 0
}
