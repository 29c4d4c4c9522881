package audit

import (
	"context"

	"github.com/upb/authd/models"
)

type contextKey int

const (
	requestMetaKey contextKey = iota
	actorKey
)

// RequestMeta is the per-request information copied onto audit entries
type RequestMeta struct {
	RequestID string
	IPAddress string
	UserAgent string
}

// ContextWithRequest attaches request metadata to ctx
func ContextWithRequest(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey, meta)
}

// RequestFromContext returns the metadata stored by ContextWithRequest
func RequestFromContext(ctx context.Context) (RequestMeta, bool) {
	meta, ok := ctx.Value(requestMetaKey).(RequestMeta)
	return meta, ok
}

// ContextWithActor records the authenticated caller in ctx
func ContextWithActor(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, actorKey, userID)
}

// ActorFromContext returns the caller recorded by ContextWithActor
func ActorFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(actorKey).(int64)
	return id, ok
}

// enrich copies ctx metadata into fields the caller left empty
func enrich(ctx context.Context, log *models.AuditLog) {
	if meta, ok := RequestFromContext(ctx); ok {
		if log.RequestID == "" {
			log.RequestID = meta.RequestID
		}
		if log.IPAddress == "" {
			log.IPAddress = meta.IPAddress
		}
		if log.UserAgent == "" {
			log.UserAgent = meta.UserAgent
		}
	}
	if log.ActorID == nil {
		if id, ok := ActorFromContext(ctx); ok {
			log.WithActor(id)
		}
	}
}
