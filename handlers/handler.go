package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/padraicbc/library/auth"
	"github.com/padraicbc/library/catalog"
	"github.com/padraicbc/library/logger"
	"github.com/padraicbc/library/membership"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler holds shared dependencies used by all route handlers.
type Handler struct {
	auth    *auth.Service
	catalog *catalog.Service
	members *membership.Service
	db      Pinger
	log     *zap.Logger
}

// New creates a Handler over the given services.
func New(a *auth.Service, cat *catalog.Service, members *membership.Service, db Pinger, log *zap.Logger) *Handler {
	return &Handler{
		auth:    a,
		catalog: cat,
		members: members,
		db:      db,
		log:     logger.OrNop(log).Named("http"),
	}
}
