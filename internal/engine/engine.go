package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"reportline/internal/config"
	"reportline/internal/events"
	"reportline/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Logger *zap.Logger
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config, logger *zap.Logger) Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{},
		Config: cfg,
		Logger: logger,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// emit appends an audit event stamped with the engine clock.
func (e Engine) emit(ctx context.Context, rc *reconcileCtx, evtType, entityKind string, entityID int64, payload events.EventPayload) error {
	w := e.Events
	w.Now = e.now
	return w.Append(ctx, rc.tx, evtType, rc.report.ID, entityKind, entityID, rc.actor, payload)
}

// invariant logs a broken storage invariant and wraps it for the caller.
func (e Engine) invariant(err error, fields ...zap.Field) error {
	e.log().Error("storage invariant violated", append(fields, zap.Error(err))...)
	return &InvariantError{Err: err}
}

func outcome(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
