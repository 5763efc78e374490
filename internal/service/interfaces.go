package service

import (
	"context"
	"encoding/json"
	"errors"

	"catalogsync-api/internal/model"

	"github.com/shopspring/decimal"
)

// RemoteCatalog is the remote platform as seen by the services. A nil record
// with a nil error means the product does not exist remotely.
type RemoteCatalog interface {
	FetchByID(ctx context.Context, id string) (*model.ProductRecord, error)
	List(ctx context.Context, pageSize int, cursor string) (*model.RemotePage, error)
	Create(ctx context.Context, title string, price decimal.Decimal, description string, quantity int) (*model.ProductRecord, error)
	Update(ctx context.Context, id, title, description string, price decimal.Decimal) (*model.ProductRecord, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// errNoCreatedProduct is returned when the remote platform accepts a create
// but reports no product.
var errNoCreatedProduct = errors.New("remote create returned no product")

// AuditSink accepts audit events without blocking.
type AuditSink interface {
	Record(ev model.AuditEvent) bool
}

// discardSink is used when no sink is configured.
type discardSink struct{}

func (discardSink) Record(model.AuditEvent) bool { return false }

func sinkOrDiscard(s AuditSink) AuditSink {
	if s == nil {
		return discardSink{}
	}
	return s
}

// payload renders an audit payload. Marshalling a map of plain values cannot
// fail, so errors are ignored.
func payload(fields map[string]interface{}) string {
	b, _ := json.Marshal(fields)
	return string(b)
}

func failedEvent(action model.AuditAction, target string, fields map[string]interface{}) model.AuditEvent {
	ev := model.NewProductEvent(action, target, payload(fields))
	ev.Succeeded = false
	return ev
}
