package services

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

const janitorTag = "upload-janitor"

// Janitor periodically removes uploads left behind by interrupted requests.
type Janitor struct {
	scheduler *gocron.Scheduler
	store     *UploadStore
	retention time.Duration
	log       *slog.Logger
}

func NewJanitor(store *UploadStore, interval, retention time.Duration, log *slog.Logger) (*Janitor, error) {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	j := &Janitor{
		scheduler: s,
		store:     store,
		retention: retention,
		log:       log,
	}

	if _, err := s.Every(interval).Tag(janitorTag).Do(j.Sweep); err != nil {
		return nil, err
	}
	return j, nil
}

// Start starts the scheduler
func (j *Janitor) Start() {
	j.scheduler.StartAsync()
}

// Stop stops the scheduler
func (j *Janitor) Stop() {
	j.scheduler.Stop()
}

// Sweep runs one cleanup pass.
func (j *Janitor) Sweep() error {
	removed, err := j.store.Sweep(time.Now().Add(-j.retention))
	if err != nil {
		j.log.Error("upload sweep failed", "error", err)
		return err
	}
	if removed > 0 {
		j.log.Info("removed stale uploads", "count", removed, "dir", j.store.Dir())
	}
	return nil
}
