package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/salesplan/salesplan/internal/config"
	"github.com/salesplan/salesplan/pkg/tablestore"
	log "github.com/sirupsen/logrus"
)

// Application wires configuration, table store, router, and server lifecycle.
type Application struct {
	cfg    config.Application
	store  tablestore.Client
	router *mux.Router
	srv    *http.Server
}

// NewApplication constructs the full HTTP application, ready to Run().
func NewApplication(configFile string) (*Application, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	store, err := NewTableStore(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	deps := BuildDependencies(store, cfg)
	SetupMiddleware(r)
	RegisterRoutes(r, deps)

	srv := &http.Server{
		Handler:      r,
		Addr:         ":8181",
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Application{cfg: cfg, store: store, router: r, srv: srv}, nil
}

// Run starts the HTTP server and blocks until it is shut down.
func (a *Application) Run() error {
	log.Infof("Starting server on %s using %s table store", a.srv.Addr, a.cfg.Store.Backend)
	return a.srv.ListenAndServe()
}

// Shutdown stops accepting requests, waits for the running ones and releases the table store.
func (a *Application) Shutdown(ctx context.Context) error {
	err := a.srv.Shutdown(ctx)
	if closer, ok := a.store.(interface{ Close() }); ok {
		closer.Close()
	}
	return err
}
