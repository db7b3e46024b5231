package tasks

import (
	"context"
	"fmt"
)

// newJournalPruneTask drops publications older than the configured retention.
func newJournalPruneTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "journal_prune")

	return func(ctx context.Context) error {
		if deps.JournalRetention <= 0 {
			log.DebugContext(ctx, "Journal retention disabled, nothing to prune")
			return nil
		}

		cutoff := deps.now().Add(-deps.JournalRetention)
		removed, err := deps.Store.PrunePublications(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("journal prune failed: %w", err)
		}

		log.InfoContext(ctx, "Pruned journal", "removed", removed, "cutoff", cutoff)
		return nil
	}
}
