package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/yourusername/twitch-vod-go/internal/domain"
	"github.com/yourusername/twitch-vod-go/internal/infrastructure"
)

// SegmentFetcher retrieves one segment body with retry applied
type SegmentFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ProgressFunc receives a job snapshot after every finished batch
type ProgressFunc func(job *domain.DownloadJob)

// SegmentDownloader drives the parallel download of a segment list in
// fixed-size batches. Each batch is submitted to a shared goroutine pool
// and awaited in full before the next one starts, which keeps memory and
// connection pressure bounded and gives pause a natural boundary.
type SegmentDownloader struct {
	fetcher    SegmentFetcher
	store      domain.SegmentStore
	pool       *ants.Pool
	batchSize  int
	batchDelay time.Duration
	maxStreak  int
	log        *zap.Logger
}

// SegmentDownloaderConfig tunes the batch engine
type SegmentDownloaderConfig struct {
	Concurrency            int
	BatchDelay             time.Duration
	MaxConsecutiveFailures int
}

func NewSegmentDownloader(fetcher SegmentFetcher, store domain.SegmentStore, pool *ants.Pool, cfg SegmentDownloaderConfig, log *zap.Logger) *SegmentDownloader {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = 30
	}
	return &SegmentDownloader{
		fetcher:    fetcher,
		store:      store,
		pool:       pool,
		batchSize:  cfg.Concurrency,
		batchDelay: cfg.BatchDelay,
		maxStreak:  cfg.MaxConsecutiveFailures,
		log:        log,
	}
}

type segmentResult struct {
	index int
	size  int64
	err   error
}

// Run downloads every segment of the job. Copyright-blocked segments
// (HTTP 403) are recorded and skipped without threatening the job;
// transient failures count toward a consecutive-failure streak that
// aborts the job with domain.ErrTooManyFailures once it exceeds the
// configured limit. Returns domain.ErrCancelled when aborted.
func (d *SegmentDownloader) Run(ctx context.Context, job *domain.DownloadJob, segments []domain.SegmentEntry, ctrl *JobControl, progress ProgressFunc) error {
	stop := context.AfterFunc(ctx, ctrl.Abort)
	defer stop()

	streak := 0

	for start := 0; start < len(segments); start += d.batchSize {
		if err := ctrl.WaitIfPaused(); err != nil {
			return err
		}

		end := start + d.batchSize
		if end > len(segments) {
			end = len(segments)
		}
		batch := segments[start:end]

		results := make([]segmentResult, len(batch))
		var wg sync.WaitGroup
		for i, seg := range batch {
			i, seg := i, seg
			wg.Add(1)
			task := func() {
				defer wg.Done()
				data, err := d.fetcher.Fetch(ctx, seg.URL)
				if err != nil {
					results[i] = segmentResult{index: seg.Index, err: err}
					return
				}
				if err := d.store.Put(job.ID, seg.Index, data); err != nil {
					results[i] = segmentResult{index: seg.Index, err: err}
					return
				}
				results[i] = segmentResult{index: seg.Index, size: int64(len(data))}
			}
			if err := d.pool.Submit(task); err != nil {
				// pool released mid-run, fall back to inline execution
				task()
			}
		}
		wg.Wait()

		for _, res := range results {
			switch {
			case res.err == nil:
				job.RecordSegment(res.size)
				streak = 0
			case isBlocked(res.err):
				job.RecordBlocked()
				d.log.Debug("segment copyright-blocked",
					zap.String("job_id", job.ID),
					zap.Int("index", res.index))
			case infrastructure.IsCancellation(res.err):
				return domain.ErrCancelled
			case errors.Is(res.err, domain.ErrStorageQuota):
				return res.err
			default:
				job.RecordFailure()
				streak++
				d.log.Warn("segment download failed",
					zap.String("job_id", job.ID),
					zap.Int("index", res.index),
					zap.Int("streak", streak),
					zap.Error(res.err))
				if streak > d.maxStreak {
					return domain.ErrTooManyFailures
				}
			}
		}

		if progress != nil {
			progress(job)
		}

		if end < len(segments) && d.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return domain.ErrCancelled
			case <-time.After(d.batchDelay):
			}
		}
	}

	return nil
}

func isBlocked(err error) bool {
	var fe *domain.SegmentFetchError
	return errors.As(err, &fe) && fe.Class == domain.FailureBlocked
}
