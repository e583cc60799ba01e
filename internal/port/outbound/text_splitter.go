// Package outbound defines the interfaces this core consumes from driven
// adapters (splitting, messaging, persistence).
package outbound

import (
	"context"

	"textchunking/internal/domain/entity"
	"textchunking/internal/domain/valueobject"
)

// TextSplitter partitions text into an ordered sequence of bounded-size
// chunks at preferred semantic boundaries. Implementations are pure: no
// shared state, safe for concurrent use.
type TextSplitter interface {
	Split(ctx context.Context, text string, cfg valueobject.SplitConfig) (*entity.SplitPlan, error)
}
