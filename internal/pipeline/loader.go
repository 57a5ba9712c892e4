package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/hydro-telegram-etl/internal/domain"
)

// FanoutLoader writes every batch to each loader in order, stopping at the
// first failure. Loaders ahead of the failing one keep the batch.
type FanoutLoader struct {
	loaders []BatchLoader
}

// NewFanoutLoader creates a FanoutLoader over the given loaders.
func NewFanoutLoader(loaders ...BatchLoader) *FanoutLoader {
	return &FanoutLoader{loaders: loaders}
}

func (f *FanoutLoader) LoadBatch(ctx context.Context, events []domain.OutputEvent) error {
	for i, l := range f.loaders {
		if err := l.LoadBatch(ctx, events); err != nil {
			return fmt.Errorf("loader %d: %w", i, err)
		}
	}
	return nil
}
