package app

import (
	"path/filepath"

	"github.com/talkincode/shopsync/config"
	"github.com/talkincode/shopsync/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newOpLogger writes one JSON line per sync event to logs/oplog.log
func newOpLogger(cfg *config.AppConfig) *zap.Logger {
	w := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.GetLogDir(), "oplog.log"),
		MaxSize:    16,
		MaxBackups: 30,
		MaxAge:     365,
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "opt_time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(w), zapcore.InfoLevel)
	return zap.New(core)
}

func (a *Application) writeOpLog(ev domain.SyncEvent) {
	fields := []zap.Field{
		zap.String("action", ev.Action),
		zap.Time("executed_at", ev.ExecutedAt),
	}
	if ev.SKU != "" {
		fields = append(fields, zap.String("sku", ev.SKU))
	}
	if ev.RemoteID > 0 {
		fields = append(fields, zap.Int64("remote_id", ev.RemoteID))
	}
	if ev.Count > 0 {
		fields = append(fields, zap.Int("count", ev.Count))
	}
	if ev.Failed() {
		fields = append(fields,
			zap.String("local_error", ev.LocalError),
			zap.String("remote_error", ev.RemoteError),
		)
		a.opLog.Warn("sync failed", fields...)
		return
	}
	a.opLog.Info("sync done", fields...)
}
