package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/events"
)

// StartAuditWorker subscribes the audit log to every user lifecycle event.
func StartAuditWorker(dispatcher events.Dispatcher, logger *zap.Logger) {
	if dispatcher == nil {
		return
	}
	events.SubscribeAll(dispatcher, events.AuditLogger(logger.Named("audit")))
}
