package app

import (
	"context"
	"fmt"

	"github.com/salesplan/salesplan/internal/config"
	"github.com/salesplan/salesplan/internal/database"
	"github.com/salesplan/salesplan/internal/event_bus"
	"github.com/salesplan/salesplan/pkg/allocation"
	"github.com/salesplan/salesplan/pkg/report"
	"github.com/salesplan/salesplan/pkg/tablestore"
	log "github.com/sirupsen/logrus"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	EventBus   *event_bus.EventBus
	TableStore tablestore.Client

	Catalog           allocation.Catalog
	AllocationEditor  *allocation.Editor
	AllocationHandler *allocation.Handler

	ReportService *report.ServiceImpl
	ReportView    *report.View
	ReportHandler *report.Handler
}

// NewTableStore opens the table backend selected in the configuration.
func NewTableStore(ctx context.Context, cfg config.Application) (tablestore.Client, error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(cfg.Database); err != nil {
			db.Close()
			return nil, err
		}
		return tablestore.NewPostgresClient(db), nil
	case config.StoreSheets:
		return tablestore.NewSheetsClient(ctx, cfg.Sheets)
	case config.StoreRemote:
		return tablestore.NewRemoteClient(ctx, cfg.Remote), nil
	case config.StoreMemory:
		log.Warn("Using in-memory table store, submitted plans are lost on restart")
		return tablestore.NewMemoryClient(), nil
	default:
		return nil, fmt.Errorf("unknown table store backend %q", cfg.Store.Backend)
	}
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(store tablestore.Client, cfg config.Application) *Dependencies {
	deps := &Dependencies{}

	deps.EventBus = event_bus.NewEventBus()
	deps.TableStore = store

	deps.Catalog = allocation.NewCatalog(cfg.Catalog)
	deps.AllocationEditor = allocation.NewEditor(deps.TableStore, cfg.Store, deps.Catalog, deps.EventBus)
	deps.ReportService = report.NewService(deps.TableStore, cfg.Store)
	deps.AllocationHandler = allocation.NewHandler(deps.AllocationEditor, deps.ReportService)

	deps.ReportView = report.NewView(deps.ReportService)
	deps.ReportHandler = report.NewHandler(deps.ReportService, deps.ReportView)
	report.SubscribeInvalidation(deps.EventBus, deps.ReportService, deps.ReportView)

	return deps
}
