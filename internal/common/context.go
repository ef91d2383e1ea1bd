package common

import (
	"context"
)

type contextKey string

// ContextKeyScanID carries the id of the scan being processed.
const ContextKeyScanID contextKey = "scan_id"

// WithScanID tags ctx with the scan being processed so lower layers can
// log it.
func WithScanID(ctx context.Context, scanID string) context.Context {
	return context.WithValue(ctx, ContextKeyScanID, scanID)
}

// ScanIDFromContext returns the scan id set by WithScanID, or "".
func ScanIDFromContext(ctx context.Context) string {
	if scanID, ok := ctx.Value(ContextKeyScanID).(string); ok {
		return scanID
	}
	return ""
}
