package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// orphan images younger than this are kept; an upload may still be in flight
const orphanImageGrace = 24 * time.Hour

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() error {
	loc, err := time.LoadLocation(a.appConfig.System.Location)
	if err != nil {
		loc = time.Local
	}
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	if spec := strings.TrimSpace(a.appConfig.Sync.AuditCron); spec != "" {
		if _, err := a.sched.AddFunc(spec, a.SchedAuditTask); err != nil {
			return errors.Wrapf(err, "invalid sync.audit_cron %q", spec)
		}
		zap.L().Info("catalog audit scheduled", zap.String("namespace", "app"), zap.String("spec", spec))
	}

	_, err = a.sched.AddFunc("@daily", a.SchedImageSweepTask)
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	a.sched.Start()
	return nil
}

// SchedAuditTask runs a catalog audit on the schedule
func (a *Application) SchedAuditTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	_, _ = a.RunAudit(ctx)
}

// SchedImageSweepTask removes image files no catalog record refers to
func (a *Application) SchedImageSweepTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	removed, err := a.sweepOrphanImages(context.Background(), time.Now().Add(-orphanImageGrace))
	if err != nil {
		zap.L().Error("image sweep failed", zap.String("namespace", "app"), zap.Error(err))
		return
	}
	if removed > 0 {
		zap.L().Info("orphan images removed", zap.String("namespace", "app"), zap.Int("count", removed))
	}
}

// sweepOrphanImages deletes unreferenced files last modified before cutoff
func (a *Application) sweepOrphanImages(ctx context.Context, cutoff time.Time) (int, error) {
	products, err := a.store.Load(ctx)
	if err != nil {
		return 0, err
	}
	inUse := make(map[string]struct{}, len(products))
	dir := a.appConfig.ImageDirPath()
	for _, p := range products {
		if path := p.ImagePath(dir); path != "" {
			inUse[path] = struct{}{}
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "read image dir")
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if _, ok := inUse[path]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			zap.L().Warn("remove orphan image", zap.String("path", path), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}
