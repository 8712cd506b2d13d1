package services

import (
	"context"
	"log/slog"

	"github.com/screenfund/backend/internal/models"
	"github.com/screenfund/backend/internal/notify"
	"github.com/screenfund/backend/internal/repository"
)

// Notifier is the fire-and-forget event fanout; *notify.Dispatcher
// satisfies it. Services tolerate a nil Notifier.
type Notifier interface {
	Dispatch(ev notify.Event)
}

func dispatch(n Notifier, ev notify.Event) {
	if n != nil {
		n.Dispatch(ev)
	}
}

// audit writes a best-effort audit row; the ledger transition it
// describes has already committed.
func audit(ctx context.Context, store repository.Store, entityType, entityID, action string, details map[string]any) {
	id := entityID
	err := store.AuditLogs().Create(ctx, models.AuditLog{
		EntityType: entityType,
		EntityID:   &id,
		Action:     action,
		Details:    details,
	})
	if err != nil {
		slog.Warn("audit write failed", "entity", entityType, "id", entityID, "action", action, "err", err)
	}
}
