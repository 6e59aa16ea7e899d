package cronjob

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/craftdeck/craftdeck-backend/internal/events/repository"
)

// Sweeper prunes the append-only event log on a nightly schedule. The log
// is bookkeeping, not the source of truth, so dropping old rows is safe.
type Sweeper struct {
	eventLog  *repository.LogRepository
	retention time.Duration
}

func NewSweeper(eventLog *repository.LogRepository, retention time.Duration) *Sweeper {
	return &Sweeper{eventLog: eventLog, retention: retention}
}

// Start initializes cron tasks
func (s *Sweeper) Start() {
	c := cron.New(cron.WithSeconds())

	//  (12:00 AM)
	_, err := c.AddFunc("0 0 0 * * *", func() {
		s.Sweep(context.Background())
	})

	if err != nil {
		log.Printf("Failed to create cron job: %v", err)
		return
	}

	log.Println("Event log sweeper started (running nightly at 12:00AM)")
	c.Start()
}

// Sweep removes event rows older than the retention window.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.retention)
	n, err := s.eventLog.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		log.Printf("Event log sweep failed: %v", err)
		return
	}
	log.Printf("Event log sweep removed %d rows older than %s", n, cutoff.Format(time.RFC3339))
}
