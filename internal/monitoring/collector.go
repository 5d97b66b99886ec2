package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector-cli/internal/cache"
	"github.com/sells-group/prospector-cli/internal/model"
	"github.com/sells-group/prospector-cli/internal/store"
)

// Snapshot holds a point-in-time view of system health.
type Snapshot struct {
	// Run metrics. RunsAllTime spans the whole store; the rest cover the
	// lookback window.
	RunsAllTime   int     `json:"runs_all_time"`
	RunsTotal     int     `json:"runs_total"`
	RunsQueued    int     `json:"runs_queued"`
	RunsRunning   int     `json:"runs_running"`
	RunsComplete  int     `json:"runs_complete"`
	RunsFailed    int     `json:"runs_failed"`
	RunsCancelled int     `json:"runs_cancelled"`
	RunFailRate   float64 `json:"run_fail_rate"`

	// Contact metrics. ContactsTotal spans the whole store; the rest are
	// aggregated from run reports within the window.
	ContactsTotal       int     `json:"contacts_total"`
	ContactsExtracted   int     `json:"contacts_extracted"`
	AvgConfidence       float64 `json:"avg_confidence"`
	DuplicatesCollapsed int     `json:"duplicates_collapsed"`

	// Live cache stats for this process.
	CacheHits    uint64  `json:"cache_hits"`
	CacheMisses  uint64  `json:"cache_misses"`
	CacheHitRate float64 `json:"cache_hit_rate"`
	CacheKeys    int     `json:"cache_keys"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store and the shared cache.
type Collector struct {
	store store.Store
	cache *cache.Cache
}

// NewCollector creates a new metrics collector. cache may be nil when no
// live cache exists (one-shot commands); cache fields stay zero then.
func NewCollector(st store.Store, c *cache.Cache) *Collector {
	return &Collector{store: st, cache: c}
}

// Collect gathers a snapshot of system metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	snap := &Snapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		CreatedAfter: cutoff,
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	var totalConfidence float64

	for _, r := range runs {
		switch r.Status {
		case model.RunStatusQueued:
			snap.RunsQueued++
		case model.RunStatusRunning, model.RunStatusMerging:
			snap.RunsRunning++
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusCancelled:
			snap.RunsCancelled++
		}
		if r.Report != nil {
			snap.ContactsExtracted += len(r.Report.Records)
			snap.DuplicatesCollapsed += r.Report.Metrics.DuplicatesCollapsed
			for _, rec := range r.Report.Records {
				totalConfidence += rec.Confidence
			}
		}
	}

	finished := snap.RunsComplete + snap.RunsFailed + snap.RunsCancelled
	if finished > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if snap.ContactsExtracted > 0 {
		snap.AvgConfidence = totalConfidence / float64(snap.ContactsExtracted)
	}

	allRuns, err := c.store.CountRuns(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count runs")
	}
	snap.RunsAllTime = allRuns

	contacts, err := c.store.CountContacts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count contacts")
	}
	snap.ContactsTotal = contacts

	if c.cache != nil {
		stats := c.cache.Stats()
		snap.CacheHits = stats.Hits
		snap.CacheMisses = stats.Misses
		snap.CacheHitRate = stats.HitRate
		snap.CacheKeys = stats.LiveKeys
	}

	return snap, nil
}
