package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/stride-app/stride/internal/reconcile"
	"github.com/stride-app/stride/internal/scheduler"
)

type DaemonCmd struct {
	Source string `help:"Path to a JSON step-history export to reconcile against periodically."`
}

func (c *DaemonCmd) Run(ctx *Context) error {
	var recon *reconcile.Service
	if c.Source != "" {
		recon = reconcile.NewService(ctx.Engine, reconcile.NewFileSource(c.Source))
	}

	daemon := scheduler.NewDaemon(ctx.Engine, recon, filepath.Dir(ctx.Store.GetConfigPath()))

	runCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return daemon.Run(runCtx)
}
