package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/events"
)

func TestStartAuditWorker(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)
	dispatcher := events.NewInMemoryDispatcher(logger)

	StartAuditWorker(dispatcher, logger)
	StartAuditWorker(nil, logger)

	actor := events.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	for _, typ := range []events.EventType{events.EventUserRegistered, events.EventUserUpdated, events.EventUserDeleted} {
		require.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(typ, "user-1", actor, nil)))
	}

	audit := logs.FilterMessage("audit").All()
	require.Len(t, audit, 3)
	assert.Equal(t, "audit", audit[0].LoggerName)
	assert.Equal(t, "user-1", audit[0].ContextMap()["user_id"])
}
