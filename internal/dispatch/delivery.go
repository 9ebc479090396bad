package dispatch

import (
	"context"
	"log"
	"time"

	"github.com/peterbot/peterbot/internal/core"
	"github.com/peterbot/peterbot/internal/store"
)

// Delivery polls completed-but-unnotified jobs and pushes their results to
// the originating channel. Jobs stay in the feed until a notify succeeds;
// delivered flips only afterwards.
type Delivery struct {
	DB       *store.DB
	Notifier core.Notifier
	Interval time.Duration
}

func NewDelivery(db *store.DB, notifier core.Notifier) *Delivery {
	return &Delivery{DB: db, Notifier: notifier, Interval: 15 * time.Second}
}

// Run polls until ctx is cancelled.
func (d *Delivery) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()

	log.Println("[DELIVERY] started, polling every", d.Interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("[DELIVERY] stopped")
			return nil
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick runs one delivery pass.
func (d *Delivery) Tick(ctx context.Context) {
	jobs, err := d.DB.ListUndeliveredJobs(ctx)
	if err != nil {
		log.Printf("[DELIVERY] querying undelivered jobs: %v", err)
		return
	}
	for _, j := range jobs {
		if err := d.Notifier.Notify(ctx, j); err != nil {
			log.Printf("[DELIVERY] notifying chat %s for job %s: %v", j.ChatID, j.ID, err)
			continue
		}
		if err := d.DB.MarkJobDelivered(ctx, j.ID); err != nil {
			log.Printf("[DELIVERY] marking job %s delivered: %v", j.ID, err)
		}
	}
}
