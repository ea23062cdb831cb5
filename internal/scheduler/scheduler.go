// Package scheduler runs the stride daemon: the cron-driven background loop
// that closes out finished days, applies monthly shield refills, and
// reconciles against the step source. A pidfile guards against a second
// daemon racing the first on the same store.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"
	"github.com/robfig/cron/v3"

	"github.com/stride-app/stride/internal/constants"
	"github.com/stride-app/stride/internal/logger"
	"github.com/stride-app/stride/internal/reconcile"
	"github.com/stride-app/stride/internal/streak"
	"github.com/stride-app/stride/internal/utils"
)

type Daemon struct {
	engine  *streak.Engine
	recon   *reconcile.Service
	cron    *cron.Cron
	pidfile string
}

func NewDaemon(engine *streak.Engine, recon *reconcile.Service, pidfileDir string) *Daemon {
	return &Daemon{
		engine:  engine,
		recon:   recon,
		cron:    cron.New(),
		pidfile: filepath.Join(pidfileDir, constants.PidfileName),
	}
}

// Run starts the cron loop and blocks until the context is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.writePidfile(); err != nil {
		return err
	}
	defer d.removePidfile()

	if err := d.setupJobs(); err != nil {
		return err
	}

	// Catch up on anything missed while the daemon was down
	d.refill()
	d.rollover()
	if d.recon != nil {
		d.reconcileHistory()
	} else if _, _, err := reconcile.NewService(d.engine, nil).AttemptStreakRepair(); err != nil {
		logger.Error("Repair attempt failed", "error", err)
	}

	d.cron.Start()
	logger.Info("Daemon started", "pid", os.Getpid(), "pidfile", d.pidfile)

	<-ctx.Done()

	stopCtx := d.cron.Stop()
	<-stopCtx.Done()
	logger.Info("Daemon stopped")
	return nil
}

func (d *Daemon) setupJobs() error {
	if _, err := d.cron.AddFunc(constants.RolloverCronSpec, d.rollover); err != nil {
		return fmt.Errorf("failed to schedule rollover job: %w", err)
	}
	if _, err := d.cron.AddFunc(constants.RefillCronSpec, d.refill); err != nil {
		return fmt.Errorf("failed to schedule refill job: %w", err)
	}
	if d.recon != nil {
		if _, err := d.cron.AddFunc(constants.ReconcileCronSpec, d.reconcileHistory); err != nil {
			return fmt.Errorf("failed to schedule reconcile job: %w", err)
		}
	}
	return nil
}

// rollover settles yesterday: deploy a shield on a miss or break the streak.
func (d *Daemon) rollover() {
	today, err := d.engine.Today()
	if err != nil {
		logger.Error("Rollover skipped", "error", err)
		return
	}
	yesterday, err := utils.AddDays(today, -1)
	if err != nil {
		logger.Error("Rollover skipped", "error", err)
		return
	}

	deployed, broke, err := d.engine.CloseOutDay(yesterday)
	if err != nil {
		logger.Error("Rollover failed", "day", yesterday, "error", err)
		return
	}
	if deployed || broke {
		logger.Info("Closed out day", "day", yesterday, "shield_deployed", deployed, "streak_broken", broke)
	}
}

func (d *Daemon) refill() {
	if err := d.engine.RefillIfNeeded(); err != nil {
		logger.Error("Refill failed", "error", err)
	}
}

func (d *Daemon) reconcileHistory() {
	result, err := d.recon.Run()
	if err != nil {
		logger.Warn("Reconciliation skipped", "error", err)
		return
	}
	if result.Superseded {
		return
	}
	// Speculative crash-safe repair after every successful reconcile pass
	if outcome, day, err := d.recon.AttemptStreakRepair(); err != nil {
		logger.Error("Repair attempt failed", "error", err)
	} else if outcome == reconcile.RepairDone {
		logger.Info("Repaired missed day during reconciliation", "day", day)
	}
}

func (d *Daemon) writePidfile() error {
	if pid, running := DaemonRunning(d.pidfile); running {
		return fmt.Errorf("daemon already running with pid %d", pid)
	}
	if err := os.MkdirAll(filepath.Dir(d.pidfile), 0o755); err != nil {
		return fmt.Errorf("failed to create pidfile dir: %w", err)
	}
	return os.WriteFile(d.pidfile, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func (d *Daemon) removePidfile() {
	if err := os.Remove(d.pidfile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Failed to remove pidfile", "path", d.pidfile, "error", err)
	}
}

// DaemonRunning checks the pidfile and verifies the recorded process is
// actually a live stride binary. A stale pidfile left by a crash does not
// count as running.
func DaemonRunning(pidfile string) (int, bool) {
	data, err := os.ReadFile(pidfile)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	process, err := ps.FindProcess(pid)
	if err != nil || process == nil {
		return 0, false
	}
	if !strings.HasPrefix(process.Executable(), constants.AppName) {
		return 0, false
	}
	return pid, true
}
