// Package suggest offers best-effort text suggestions for task forms. Every
// method reports false instead of failing: callers treat a missing suggestion
// as normal and never surface suggester problems to the user.
package suggest

import (
	"context"

	"github.com/BuzzLyutic/tasktrack/internal/model"
)

type Suggester interface {
	SuggestPriority(ctx context.Context, title, description string) (model.Priority, bool)
	GenerateDescription(ctx context.Context, title string) (string, bool)
	SuggestUpdateNote(ctx context.Context, title string, from, to model.Status) (string, bool)
}

// Disabled is used when no text generation backend is configured.
type Disabled struct{}

func (Disabled) SuggestPriority(context.Context, string, string) (model.Priority, bool) {
	return "", false
}

func (Disabled) GenerateDescription(context.Context, string) (string, bool) {
	return "", false
}

func (Disabled) SuggestUpdateNote(context.Context, string, model.Status, model.Status) (string, bool) {
	return "", false
}
