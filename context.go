package goAuthz

import (
	"context"

	"github.com/MrEthical07/goAuthz/internal/audit"
)

type clientIPContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The engine copies it
// into audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func annotateAudit(ctx context.Context, event *audit.Event) {
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
}
