// Package audit builds audit log entries and carries the caller's network
// details from the HTTP layer down to the services that record them.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"org_membership/internal/models"
)

// RequestInfo is what the HTTP layer knows about the caller.
type RequestInfo struct {
	IP        string
	UserAgent string
}

type requestInfoKey struct{}

func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

func RequestInfoFrom(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

// Middleware stores the client IP and user agent in the request context.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ua := c.Request.UserAgent()
		if len(ua) > 255 {
			ua = ua[:255]
		}
		info := RequestInfo{IP: c.ClientIP(), UserAgent: ua}
		c.Request = c.Request.WithContext(WithRequestInfo(c.Request.Context(), info))
		c.Next()
	}
}

// Event describes one auditable action.
type Event struct {
	Action       string
	ActorID      string
	OrgID        string
	ResourceType string
	ResourceID   string
	Metadata     map[string]any
}

// Entry turns ev into a log row stamped with the request info in ctx. It
// fails when ev.Metadata cannot be encoded as JSON.
func Entry(ctx context.Context, ev Event) (*models.AuditLog, error) {
	info := RequestInfoFrom(ctx)
	entry := &models.AuditLog{
		OrgID:        ev.OrgID,
		UserID:       ev.ActorID,
		Action:       ev.Action,
		ResourceType: ev.ResourceType,
		ResourceID:   ev.ResourceID,
		IP:           info.IP,
		UserAgent:    info.UserAgent,
	}
	if len(ev.Metadata) > 0 {
		raw, err := json.Marshal(ev.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode %s audit metadata: %w", ev.Action, err)
		}
		entry.Metadata = datatypes.JSON(raw)
	}
	return entry, nil
}

// Recorder persists audit rows.
type Recorder interface {
	Record(ctx context.Context, entry *models.AuditLog) error
}

// Record builds the entry for ev and writes it through r.
func Record(ctx context.Context, r Recorder, ev Event) error {
	entry, err := Entry(ctx, ev)
	if err != nil {
		return err
	}
	return r.Record(ctx, entry)
}
