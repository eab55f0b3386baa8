package app

import (
	"context"
	"io"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/talkincode/shopsync/config"
	"github.com/talkincode/shopsync/internal/catalog"
	"github.com/talkincode/shopsync/internal/catalogsync"
	"github.com/talkincode/shopsync/internal/domain"
	"github.com/talkincode/shopsync/internal/remote"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Application struct {
	appConfig   *config.AppConfig
	store       catalog.Store
	storeCloser io.Closer
	client      remote.CatalogClient
	syncService *catalogsync.Service
	bus         EventBus.Bus
	opLog       *zap.Logger
	sched       *cron.Cron
}

// Ensure Application implements all interfaces
var (
	_ ConfigProvider      = (*Application)(nil)
	_ CatalogProvider     = (*Application)(nil)
	_ SyncServiceProvider = (*Application)(nil)
	_ SchedulerProvider   = (*Application)(nil)
	_ AppContext          = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) Store() catalog.Store {
	return a.store
}

func (a *Application) SyncService() *catalogsync.Service {
	return a.syncService
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

// Bus returns the sync event bus
func (a *Application) Bus() EventBus.Bus {
	return a.bus
}

// OverrideClient replaces the remote client before Init (used in tests).
func (a *Application) OverrideClient(client remote.CatalogClient) {
	a.client = client
}

func (a *Application) Init(cfg *config.AppConfig) error {
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	initLogger(cfg)

	if err := a.checkDirs(); err != nil {
		return err
	}

	switch cfg.Storage.Type {
	case config.StorageBolt:
		bs, err := catalog.OpenBoltStore(cfg.BoltFilePath())
		if err != nil {
			return err
		}
		a.store, a.storeCloser = bs, bs
	default:
		a.store = catalog.NewJSONFileStore(cfg.CatalogFilePath())
		if err := a.checkCatalog(); err != nil {
			return err
		}
	}
	zap.L().Info("catalog store ready",
		zap.String("namespace", "app"),
		zap.String("type", cfg.Storage.Type),
	)

	skus, err := catalogsync.NewSnowflakeSKU(cfg.System.NodeID)
	if err != nil {
		return err
	}

	if a.client == nil {
		if cfg.Catalog.URL == "" {
			zap.L().Warn("catalog.url is empty, remote calls will fail", zap.String("namespace", "app"))
		}
		a.client = remote.NewWooClient(cfg)
	}

	a.bus = EventBus.New()
	a.opLog = newOpLogger(cfg)
	if err := a.bus.SubscribeAsync(domain.SyncEventTopic, a.writeOpLog, true); err != nil {
		return errors.Wrap(err, "subscribe op log")
	}

	a.syncService = catalogsync.NewService(cfg, a.store, a.client, skus, a.bus)

	return a.initJob()
}

// initLogger installs the global zap logger, with lumberjack rotation when file output is on
func initLogger(cfg *config.AppConfig) {
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.OutputPaths = []string{"stdout"}

	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller())
	} else {
		var err error
		logger, err = zapConfig.Build(zap.AddCaller())
		if err != nil {
			panic(err)
		}
	}

	zap.ReplaceGlobals(logger)
}

// RunAudit compares the local catalog with the remote one and logs the result
func (a *Application) RunAudit(ctx context.Context) (*catalogsync.AuditReport, error) {
	report, err := a.syncService.Audit(ctx)
	if err != nil {
		zap.L().Error("catalog audit failed", zap.String("namespace", "app"), zap.Error(err))
		return nil, err
	}
	if !report.InSync() {
		zap.L().Warn("catalog out of sync",
			zap.String("namespace", "app"),
			zap.Strings("unsynced", report.Unsynced),
			zap.Int64s("missing_remote", report.MissingRemote),
			zap.Int64s("unknown_remote", report.UnknownRemote),
		)
	}
	return report, nil
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		<-a.sched.Stop().Done()
	}
	if a.bus != nil {
		a.bus.WaitAsync()
	}
	if a.storeCloser != nil {
		if err := a.storeCloser.Close(); err != nil {
			zap.L().Warn("close catalog store", zap.Error(err))
		}
	}
	if a.opLog != nil {
		_ = a.opLog.Sync()
	}
	_ = zap.L().Sync()
}
