package http

import (
	"github.com/nats-io/nats.go"

	"github.com/sakibstark11/geoplotter/internal/core/domain"
	"github.com/sakibstark11/geoplotter/internal/core/ports"
	"github.com/sakibstark11/geoplotter/internal/core/usecases"
	"github.com/sakibstark11/geoplotter/internal/pkg/config"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Views       *usecases.ViewService
	Map         config.MapConfig
	DefaultMode domain.RenderMode
	// NATS carries surface events to websocket clients. Optional.
	NATS *nats.Conn
	// Cache holds mirrored surface sources written by any replica. Optional.
	Cache ports.CacheService
	// OpenAPIPath is served at /docs/openapi.yaml.
	OpenAPIPath string
}
