package repository

import (
	"context"

	"book-companion/internal/domain"
)

// Noop discards usage records. Used when no usage table is configured.
type Noop struct{}

func (Noop) RecordUsage(context.Context, domain.UsageRecord) error { return nil }
