package blocklist

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Source provides the community-maintained handle list.
type Source interface {
	FetchBlocklist(ctx context.Context) ([]string, error)
}

// Refresher keeps a Set's community portion current: an immediate refresh on
// start (and on each feature-enable transition), then a fixed interval.
type Refresher struct {
	set      *Set
	source   Source
	interval time.Duration
	cron     *cron.Cron
	log      *zap.Logger
}

// NewRefresher creates a Refresher with the given interval (the community
// backend expects 30 minutes).
func NewRefresher(set *Set, source Source, interval time.Duration, log *zap.Logger) *Refresher {
	return &Refresher{
		set:      set,
		source:   source,
		interval: interval,
		cron:     cron.New(),
		log:      log,
	}
}

// Start refreshes once immediately and schedules the periodic refresh.
func (r *Refresher) Start(ctx context.Context) error {
	r.Refresh(ctx)
	_, err := r.cron.AddFunc("@every "+r.interval.String(), func() {
		refreshCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		r.Refresh(refreshCtx)
	})
	if err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop halts the schedule. In-flight refreshes complete.
func (r *Refresher) Stop() {
	r.cron.Stop()
}

// Refresh pulls the community list and replaces the set's community portion.
// Failures leave the previous list in place.
func (r *Refresher) Refresh(ctx context.Context) {
	handles, err := r.source.FetchBlocklist(ctx)
	if err != nil {
		r.log.Warn("blocklist refresh failed", zap.Error(err))
		return
	}
	r.set.ReplaceCommunity(handles)
	r.log.Info("blocklist refreshed", zap.Int("community", len(handles)))
}
