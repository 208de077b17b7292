// Command purge removes draft payment requests that were abandoned. A draft
// counts as stale when it has not moved since the cutoff, judged by its
// submission timestamp and falling back to its creation time. Attachment
// files are removed best-effort; a file that fails to delete never blocks the
// database purge.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ahc-eng/payflow-api/internal/config"
	"github.com/ahc-eng/payflow-api/internal/database"
	"github.com/ahc-eng/payflow-api/internal/logger"
	"github.com/ahc-eng/payflow-api/internal/repository"
	"github.com/ahc-eng/payflow-api/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Purge error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	days := flag.Int("days", 90, "purge drafts idle for at least this many days")
	dryRun := flag.Bool("dry-run", false, "list what would be purged without deleting anything")
	flag.Parse()

	if *days < 1 {
		return fmt.Errorf("days must be at least 1")
	}

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&cfg.Logging, &cfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	fileStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	paymentRepo := repository.NewPaymentRepository(db)

	cutoff := time.Now().UTC().AddDate(0, 0, -*days)
	drafts, err := paymentRepo.ListStaleDrafts(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list stale drafts: %w", err)
	}

	log.Info("stale drafts found",
		zap.Int("count", len(drafts)),
		zap.Time("cutoff", cutoff),
		zap.Bool("dry_run", *dryRun))

	if *dryRun {
		for _, draft := range drafts {
			fmt.Printf("would purge %s (created %s, %d attachment(s))\n",
				draft.ID, draft.CreatedAt.Format("2006-01-02"), len(draft.Attachments))
		}
		return nil
	}

	var purged, failed int
	for _, draft := range drafts {
		// Remove stored files first; orphaned rows are worse than orphaned
		// files, so file errors only warn.
		for _, attachment := range draft.Attachments {
			if err := fileStorage.Delete(ctx, attachment.StoredFilename); err != nil {
				log.Warn("could not delete attachment file",
					zap.String("payment_id", draft.ID.String()),
					zap.String("stored_filename", attachment.StoredFilename),
					zap.Error(err))
			}
		}

		if err := paymentRepo.Delete(ctx, draft.ID); err != nil {
			log.Error("failed to purge draft",
				zap.String("payment_id", draft.ID.String()),
				zap.Error(err))
			failed++
			continue
		}
		purged++
	}

	log.Info("purge completed",
		zap.Int("purged", purged),
		zap.Int("failed", failed))

	if failed > 0 {
		return fmt.Errorf("%d draft(s) could not be purged", failed)
	}
	return nil
}
