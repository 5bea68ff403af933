// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/veriflowhq/veriflow/internal/config"
	"github.com/veriflowhq/veriflow/internal/infrastructure"
	"github.com/veriflowhq/veriflow/pkg/middleware"
	"github.com/veriflowhq/veriflow/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
// The queue's overdue sweep is registered against the runtime lifecycle so it
// stops with the server.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(runtime)

	domain.Queue.Start(runtime.Lifecycle)

	mux := http.NewServeMux()
	registerRoutes(mux, domain, runtime)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))

	return m, nil
}
