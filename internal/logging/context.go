// Package logging carries run correlation IDs through context.Context and
// injects them into slog records.
package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	taskIDKey ctxKey = iota
	nodeIDKey
	nodeTypeKey
)

// WithTaskID returns a context with the task ID set.
func WithTaskID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, taskIDKey, id)
}

// WithNodeID returns a context with the node ID set.
func WithNodeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, nodeIDKey, id)
}

// WithNodeType returns a context with the node type set.
func WithNodeType(ctx context.Context, typ string) context.Context {
	return context.WithValue(ctx, nodeTypeKey, typ)
}

// TaskID extracts the task ID from the context, or "" if absent.
func TaskID(ctx context.Context) string {
	v, _ := ctx.Value(taskIDKey).(string)
	return v
}

// NodeID extracts the node ID from the context, or "" if absent.
func NodeID(ctx context.Context) string {
	v, _ := ctx.Value(nodeIDKey).(string)
	return v
}

// NodeType extracts the node type from the context, or "" if absent.
func NodeType(ctx context.Context) string {
	v, _ := ctx.Value(nodeTypeKey).(string)
	return v
}

// WithNode sets node ID and type together.
func WithNode(ctx context.Context, nodeID, nodeType string) context.Context {
	ctx = WithNodeID(ctx, nodeID)
	return WithNodeType(ctx, nodeType)
}

// Attrs returns the correlation IDs present in ctx as slog attributes.
func Attrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for _, kv := range [...]struct {
		key string
		val string
	}{
		{"task_id", TaskID(ctx)},
		{"node_id", NodeID(ctx)},
		{"node_type", NodeType(ctx)},
	} {
		if kv.val != "" {
			attrs = append(attrs, slog.String(kv.key, kv.val))
		}
	}
	return attrs
}

// LogWith returns logger with the correlation IDs of ctx attached.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	attrs := Attrs(ctx)
	if len(attrs) == 0 {
		return logger
	}
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return logger.With(args...)
}

// CorrelationHandler adds the correlation IDs of the record's context to
// every record, so logger.InfoContext(ctx, ...) needs no extra attributes.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps inner.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(Attrs(ctx)...)
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
