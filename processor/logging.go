package processor

import (
	"time"

	"go.uber.org/zap"
)

// Field names used in structured log entries.
const (
	FieldComponent   = "component"
	FieldDeclaration = "declaration"
	FieldArtifact    = "artifact"
	FieldNode        = "node"
	FieldState       = "state"
	FieldVersion     = "version"
	FieldCount       = "count"
	FieldDurationMS  = "duration_ms"
)

func durationField(start time.Time) zap.Field {
	return zap.Int64(FieldDurationMS, time.Since(start).Milliseconds())
}

func componentLogger(l *zap.Logger, component string) *zap.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return l.With(zap.String(FieldComponent, component))
}
