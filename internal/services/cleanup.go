package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/unravel-backend/internal/observability"
	"github.com/yungbote/unravel-backend/internal/platform/apierr"
	"github.com/yungbote/unravel-backend/internal/platform/ctxutil"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
)

// cleanupTimeout bounds detached cleanup work once the request is gone.
const cleanupTimeout = 30 * time.Second

// bestEffort runs a non-critical step. Failures are logged and counted,
// never returned.
func bestEffort(log *logger.Logger, metrics *observability.Metrics, op string, fn func() error) {
	if fn == nil {
		return
	}
	if err := fn(); err != nil {
		metrics.IncCleanupFailure(op)
		if log != nil {
			log.Warn("best-effort step failed", "op", op, "error", err)
		}
	}
}

// ProjectCacheInvalidator drops cached retrieval results for a project.
type ProjectCacheInvalidator interface {
	InvalidateProject(ctx context.Context, projectID string) error
}

func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctxutil.Default(ctx)), cleanupTimeout)
}

func requireUser(ctx context.Context) (uuid.UUID, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, apierr.Unauthorized("Unauthorized")
	}
	return rd.UserID, nil
}

// notFoundOr maps gorm.ErrRecordNotFound to a 404 and passes other errors
// through.
func notFoundOr(err error, code, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierr.NotFound(code, msg)
	}
	return err
}

// parseID treats malformed ids as missing rows.
func parseID(raw, code, msg string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, apierr.NotFound(code, msg)
	}
	return id, nil
}
