package app

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/talkincode/shopsync/config"
	"github.com/talkincode/shopsync/internal/catalog"
	"github.com/talkincode/shopsync/internal/catalogsync"
)

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// CatalogProvider provides the local catalog store
type CatalogProvider interface {
	Store() catalog.Store
}

// SyncServiceProvider provides the sync workflows
type SyncServiceProvider interface {
	SyncService() *catalogsync.Service
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// AppContext combines all provider interfaces for full application context
// Services should depend on specific providers or this combined interface
type AppContext interface {
	ConfigProvider
	CatalogProvider
	SyncServiceProvider
	SchedulerProvider

	// RunAudit compares local and remote catalogs immediately
	RunAudit(ctx context.Context) (*catalogsync.AuditReport, error)
	Release()
}
