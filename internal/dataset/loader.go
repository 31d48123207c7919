package dataset

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/verte-zerg/heartaudit/internal/logging"
	"github.com/verte-zerg/heartaudit/internal/model"
	"github.com/verte-zerg/heartaudit/internal/store"
)

// Snapshots to keep per source after a successful fetch.
const keepSnapshots = 5

// Origin says where loaded records came from.
type Origin string

const (
	OriginNetwork Origin = "network"
	OriginCache   Origin = "cache"
	OriginEmpty   Origin = "empty"
)

// SnapshotCache stores fetched datasets for offline use.
type SnapshotCache interface {
	SaveSnapshot(ctx context.Context, source string, fetchedAt time.Time, records []model.Record, dropped int) (model.Snapshot, error)
	LatestSnapshot(ctx context.Context, source string) (model.Snapshot, []model.Record, error)
	PruneSnapshots(ctx context.Context, source string, keep int) (int, error)
}

// Loader fetches the dataset once and falls back to the cache, then to an
// empty dataset.
type Loader struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
	// Cache may be nil.
	Cache SnapshotCache
	// Offline skips the network and reads the newest snapshot.
	Offline bool
	Logger  *slog.Logger

	now func() time.Time
}

// Result is the outcome of Load.
type Result struct {
	Records  []model.Record
	Dropped  int
	Origin   Origin
	Snapshot *model.Snapshot
	// FetchErr is set when the network fetch failed and a fallback was used.
	FetchErr error
}

// Load returns the dataset. It never fails: errors degrade to the cache or
// to an empty result and are logged as warnings.
func (l *Loader) Load(ctx context.Context) Result {
	logger := l.logger()
	var fetchErr error
	if !l.Offline {
		parsed, err := Fetch(ctx, l.Client, l.URL, l.Timeout)
		if err == nil {
			res := Result{Records: parsed.Records, Dropped: parsed.Dropped, Origin: OriginNetwork}
			if parsed.Dropped > 0 {
				logger.Warn("dropped malformed rows", "count", parsed.Dropped)
			}
			res.Snapshot = l.save(ctx, parsed)
			return res
		}
		fetchErr = err
		logger.Warn("dataset fetch failed", "url", l.URL, "err", err)
	}

	if l.Cache != nil {
		snap, records, err := l.Cache.LatestSnapshot(ctx, l.URL)
		switch {
		case err == nil:
			logger.Info("using cached snapshot", "id", snap.ID, "fetched", snap.FetchedAt.Format(time.RFC3339))
			return Result{Records: records, Dropped: snap.Dropped, Origin: OriginCache, Snapshot: &snap, FetchErr: fetchErr}
		case errors.Is(err, store.ErrNoSnapshot):
			logger.Warn("no cached snapshot available", "url", l.URL)
		default:
			logger.Warn("failed to read snapshot cache", "err", err)
		}
	}
	logger.Warn("continuing with an empty dataset")
	return Result{Origin: OriginEmpty, FetchErr: fetchErr}
}

func (l *Loader) save(ctx context.Context, parsed ParseResult) *model.Snapshot {
	if l.Cache == nil {
		return nil
	}
	snap, err := l.Cache.SaveSnapshot(ctx, l.URL, l.clock(), parsed.Records, parsed.Dropped)
	if err != nil {
		l.logger().Warn("failed to cache dataset", "err", err)
		return nil
	}
	if _, err := l.Cache.PruneSnapshots(ctx, l.URL, keepSnapshots); err != nil {
		l.logger().Warn("failed to prune snapshots", "err", err)
	}
	return &snap
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return logging.Discard()
	}
	return l.Logger
}

func (l *Loader) clock() time.Time {
	if l.now == nil {
		return time.Now()
	}
	return l.now()
}
