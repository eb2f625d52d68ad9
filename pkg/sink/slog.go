package sink

import (
	"context"
	"log/slog"

	"github.com/aretw0/audittrail/pkg/core"
)

// Slog writes audit lines as structured log records.
type Slog struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlog creates a sink logging at info level.
func NewSlog(logger *slog.Logger) *Slog {
	return &Slog{logger: logger, level: slog.LevelInfo}
}

// WriteLine implements audit.Sink.
func (s *Slog) WriteLine(ctx context.Context, message, actingUser string) error {
	if actingUser == "" {
		actingUser = core.AnonymousUser
	}
	s.logger.Log(ctx, s.level, message, "user", actingUser)
	return nil
}

// Notifier surfaces creation vetoes as warnings.
type Notifier struct {
	logger *slog.Logger
}

// NewNotifier creates a notifier backed by logger.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{logger: logger}
}

// Alert implements audit.Notifier.
func (n *Notifier) Alert(ctx context.Context, actor core.Actor, message string) {
	n.logger.WarnContext(ctx, message, "user", actor.Name(), "site", actor.Site)
}
