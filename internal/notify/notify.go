// Package notify delivers push notifications to device tokens.
package notify

import (
	"context"
	"log/slog"
)

// BatchResult summarises one multicast delivery.
type BatchResult struct {
	SuccessCount int      `json:"success_count"`
	FailureCount int      `json:"failure_count"`
	FailedTokens []string `json:"failed_tokens,omitempty"`
}

// Merge adds other into r.
func (r *BatchResult) Merge(other BatchResult) {
	r.SuccessCount += other.SuccessCount
	r.FailureCount += other.FailureCount
	r.FailedTokens = append(r.FailedTokens, other.FailedTokens...)
}

// LogNotifier writes notifications to the log instead of delivering them.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification and reports every token as delivered.
func (n *LogNotifier) Notify(ctx context.Context, tokens []string, title, body string, data map[string]string) (BatchResult, error) {
	n.logger.InfoContext(ctx, "notification",
		"title", title,
		"body", body,
		"recipients", len(tokens),
		"data", data,
	)
	return BatchResult{SuccessCount: len(tokens)}, nil
}
