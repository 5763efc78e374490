package audit

import (
	"context"

	"catalogsync-api/internal/model"
	"catalogsync-api/internal/repository"
)

// RepositoryWriter writes each event straight to an audit repository.
type RepositoryWriter struct {
	Repo repository.AuditRepository
}

func (w RepositoryWriter) Write(ctx context.Context, ev model.AuditEvent) error {
	return w.Repo.InsertAuditEvent(ctx, &ev)
}

// Buffer is a write-behind buffer such as cache.RedisAuditBuffer.
type Buffer interface {
	Add(ctx context.Context, ev model.AuditEvent) error
}

// BufferWriter appends events to a write-behind buffer.
type BufferWriter struct {
	Buffer Buffer
}

func (w BufferWriter) Write(ctx context.Context, ev model.AuditEvent) error {
	return w.Buffer.Add(ctx, ev)
}
