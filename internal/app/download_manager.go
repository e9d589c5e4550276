package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/yourusername/twitch-vod-go/internal/domain"
	"github.com/yourusername/twitch-vod-go/internal/hls"
	"github.com/yourusername/twitch-vod-go/internal/infrastructure"
	"github.com/yourusername/twitch-vod-go/pkg/logger"
)

// Broadcaster pushes messages to connected progress clients
type Broadcaster interface {
	Broadcast(msg domain.Message)
}

// PlaylistResolver produces the master playlist for a VOD. The live
// implementation asks the usher origin through the intercepted client,
// so a denied VOD transparently resolves to a synthesized manifest.
type PlaylistResolver interface {
	Master(ctx context.Context, vodID string) (string, error)
}

// maxRecentJobs bounds the terminal snapshots kept for listing after a
// job's live tracking entry is destroyed.
const maxRecentJobs = 50

// activeJob pairs a job with its control handle and cancel func
type activeJob struct {
	job    *domain.DownloadJob
	ctrl   *JobControl
	cancel context.CancelFunc
	done   sync.Once
}

// DownloadManager owns the full lifecycle of VOD downloads: playlist
// resolution, segment download, reassembly, export, chat sidecar,
// history and notifications.
type DownloadManager struct {
	twitch    *infrastructure.TwitchClient
	resolver  PlaylistResolver
	fetcher   SegmentFetcher
	store     domain.SegmentStore
	history   domain.HistoryRepository
	exporter  *infrastructure.FileExporter
	notifier  *infrastructure.NotificationService
	broadcast Broadcaster
	config    *domain.Config
	logger    *zap.Logger
	multiLog  *logger.MultiLogger

	pool   *ants.Pool
	jobSem chan struct{}

	mu        sync.RWMutex
	jobs      map[string]*activeJob
	recent    map[string]domain.JobSnapshot
	recentIDs []string // eviction order, oldest first
}

// NewDownloadManager creates a download manager. The goroutine pool is
// sized for Concurrency segments across MaxParallelJobs jobs.
func NewDownloadManager(
	twitch *infrastructure.TwitchClient,
	resolver PlaylistResolver,
	fetcher SegmentFetcher,
	store domain.SegmentStore,
	history domain.HistoryRepository,
	exporter *infrastructure.FileExporter,
	notifier *infrastructure.NotificationService,
	broadcast Broadcaster,
	config *domain.Config,
	log *zap.Logger,
	multiLog *logger.MultiLogger,
) (*DownloadManager, error) {
	maxJobs := config.Download.MaxParallelJobs
	if maxJobs < 1 {
		maxJobs = 1
	}
	pool, err := ants.NewPool(config.Download.Concurrency * maxJobs)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	return &DownloadManager{
		twitch:    twitch,
		resolver:  resolver,
		fetcher:   fetcher,
		store:     store,
		history:   history,
		exporter:  exporter,
		notifier:  notifier,
		broadcast: broadcast,
		config:    config,
		logger:    log,
		multiLog:  multiLog,
		pool:      pool,
		jobSem:    make(chan struct{}, maxJobs),
		jobs:      make(map[string]*activeJob),
		recent:    make(map[string]domain.JobSnapshot),
	}, nil
}

// Close releases the worker pool
func (dm *DownloadManager) Close() {
	dm.pool.Release()
}

// StartDownload resolves the playlist for the request, prepares the job
// and launches it in the background. The returned job is live; read it
// through Snapshot.
func (dm *DownloadManager) StartDownload(ctx context.Context, req *domain.DownloadRequest) (*domain.DownloadJob, error) {
	if req.VodID == "" {
		return nil, fmt.Errorf("vod id is required")
	}

	quality := req.Quality
	if quality == "" {
		quality = "chunked"
	}

	playlistURL := req.PlaylistURL
	if playlistURL == "" {
		master, err := dm.resolver.Master(ctx, req.VodID)
		if err != nil {
			return nil, fmt.Errorf("resolving master playlist for vod %s: %w", req.VodID, err)
		}
		playlistURL = hls.PickVariant(master, quality)
		if playlistURL == "" {
			return nil, fmt.Errorf("quality %q: %w", quality, domain.ErrNoValidQuality)
		}
	}

	body, err := dm.fetcher.Fetch(ctx, playlistURL)
	if err != nil {
		return nil, fmt.Errorf("fetching playlist: %w", err)
	}

	segments, err := hls.ExtractSegments(string(body), playlistURL, req.ClipStart, req.ClipEnd)
	if err != nil {
		return nil, err
	}

	if err := dm.checkQuota(len(segments)); err != nil {
		return nil, err
	}

	job := domain.NewDownloadJob(req.VodID, quality, req.FileFormat.OrDefault(), dm.config.Download.Concurrency)
	job.TotalSegments = len(segments)
	job.IncludeChat = req.IncludeChat
	job.Filename = dm.outputFilename(req, job)

	active := &activeJob{
		job:  job,
		ctrl: NewJobControl(),
	}

	dm.mu.Lock()
	dm.jobs[job.ID] = active
	dm.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	active.cancel = cancel

	dm.logger.Info("download started",
		zap.String("job_id", job.ID),
		zap.String("vod_id", job.VodID),
		zap.Int("segments", len(segments)))
	dm.multiLog.LogJobEvent("started",
		zap.String("job_id", job.ID),
		zap.String("vod_id", job.VodID),
		zap.Int("segments", len(segments)))

	go dm.run(runCtx, active, segments)

	return job, nil
}

// checkQuota estimates the space the download needs and rejects it when
// the store cannot hold it. Advisory only; writes can still hit the
// real limit later.
func (dm *DownloadManager) checkQuota(segmentCount int) error {
	info, err := dm.store.Quota()
	if err != nil {
		dm.logger.Warn("quota check unavailable", zap.Error(err))
		return nil
	}
	needed := int64(segmentCount) * dm.config.Download.SegmentSizeEstimate
	if needed > info.Available {
		return fmt.Errorf("need ~%s, %s available: %w",
			infrastructure.FormatBytes(needed),
			infrastructure.FormatBytes(info.Available),
			domain.ErrStorageQuota)
	}
	return nil
}

func (dm *DownloadManager) outputFilename(req *domain.DownloadRequest, job *domain.DownloadJob) string {
	if req.Filename != "" {
		name := req.Filename
		ext := "." + string(job.FileFormat)
		if !strings.HasSuffix(name, ext) {
			name += ext
		}
		return name
	}
	return fmt.Sprintf("%s.%s", job.VodID, job.FileFormat)
}

func (dm *DownloadManager) run(ctx context.Context, active *activeJob, segments []domain.SegmentEntry) {
	job := active.job

	select {
	case dm.jobSem <- struct{}{}:
		defer func() { <-dm.jobSem }()
	case <-ctx.Done():
		dm.finish(active, "", domain.ErrCancelled)
		return
	}

	downloader := NewSegmentDownloader(dm.fetcher, dm.store, dm.pool, SegmentDownloaderConfig{
		Concurrency:            dm.config.Download.Concurrency,
		BatchDelay:             dm.config.Download.BatchDelay,
		MaxConsecutiveFailures: dm.config.Download.MaxConsecutiveFailures,
	}, dm.logger)

	err := downloader.Run(ctx, job, segments, active.ctrl, func(j *domain.DownloadJob) {
		snap := j.Snapshot()
		elapsed := time.Since(snap.StartedAt).Seconds()
		var speed float64
		if elapsed > 0 {
			speed = float64(snap.TotalBytes) / elapsed
		}
		dm.multiLog.LogJobEvent("progress",
			zap.String("job_id", snap.ID),
			zap.Int("completed", snap.CompletedCount),
			zap.Int("failed", snap.FailedCount),
			zap.Int("blocked", snap.CopyrightBlockedCount),
			zap.Int("total", snap.TotalSegments))
		if dm.broadcast != nil {
			dm.broadcast.Broadcast(domain.NewProgressMessage(snap, speed))
		}
	})

	if err != nil {
		dm.finish(active, "", err)
		return
	}

	filePath, err := dm.export(job)
	if err != nil {
		dm.finish(active, "", err)
		return
	}

	if job.IncludeChat {
		dm.exportChat(ctx, job, filePath)
	}

	dm.finish(active, filePath, nil)
}

// export reassembles the stored segments into the final file
func (dm *DownloadManager) export(job *domain.DownloadJob) (string, error) {
	reassembler := NewReassembler(dm.store)
	var result ReassembleResult
	path, err := dm.exporter.Save(job.Filename, func(f *os.File) error {
		var werr error
		result, werr = reassembler.WriteTo(f, job.ID, job.TotalSegments)
		return werr
	})
	if err != nil {
		return "", err
	}
	if result.Placeholders > 0 {
		dm.logger.Info("placeholders inserted for missing segments",
			zap.String("job_id", job.ID),
			zap.Int("count", result.Placeholders))
	}
	return path, nil
}

// exportChat writes the chat transcript next to the video. Best effort:
// a chat failure never fails the download.
func (dm *DownloadManager) exportChat(ctx context.Context, job *domain.DownloadJob, videoPath string) {
	messages, err := dm.twitch.DownloadChat(ctx, job.VodID)
	if err != nil {
		dm.logger.Warn("chat download failed",
			zap.String("job_id", job.ID),
			zap.Error(err))
		return
	}
	if len(messages) == 0 {
		return
	}
	vtt := infrastructure.FormatChatVTT(messages)
	if _, err := dm.exporter.SaveSidecar(videoPath, infrastructure.ChatFilename(job.Filename), []byte(vtt)); err != nil {
		dm.logger.Warn("chat export failed",
			zap.String("job_id", job.ID),
			zap.Error(err))
	}
}

// finish settles the job exactly once: terminal state, completion
// message, history record, notification, segment cleanup and eviction
// from live tracking all happen on the first call, whether from
// success, failure or cancellation.
func (dm *DownloadManager) finish(active *activeJob, filePath string, err error) {
	active.done.Do(func() {
		job := active.job

		switch {
		case err == nil:
			job.MarkCompleted()
		case errors.Is(err, domain.ErrCancelled):
			job.MarkAborted()
		default:
			job.MarkFailed(err)
		}

		if active.cancel != nil {
			active.cancel()
		}

		snap := job.Snapshot()
		if err == nil {
			dm.logger.Info("download finished",
				zap.String("job_id", snap.ID),
				zap.String("file", filePath),
				zap.Int("completed", snap.CompletedCount),
				zap.Int("blocked", snap.CopyrightBlockedCount),
				zap.Int("failed", snap.FailedCount))
			dm.notifier.NotifyDownloadComplete(snap.VodID, snap.TotalBytes, snap.FailedCount+snap.CopyrightBlockedCount)
			dm.recordHistory(snap, filePath)
		} else {
			dm.logger.Error("download ended with error",
				zap.String("job_id", snap.ID),
				zap.String("state", string(snap.State)),
				zap.Error(err))
			dm.multiLog.LogAppError("download failed",
				zap.String("job_id", snap.ID),
				zap.Error(err))
			if !errors.Is(err, domain.ErrCancelled) {
				dm.notifier.NotifyDownloadFailed(snap.VodID, err)
			}
		}

		dm.multiLog.LogJobEvent(string(snap.State),
			zap.String("job_id", snap.ID),
			zap.Int("completed", snap.CompletedCount),
			zap.Int("failed", snap.FailedCount),
			zap.Int("blocked", snap.CopyrightBlockedCount),
			zap.Int64("bytes", snap.TotalBytes))

		if dm.broadcast != nil {
			dm.broadcast.Broadcast(domain.NewCompleteMessage(snap, filePath, err))
		}

		if cerr := dm.store.DeleteDownload(job.ID); cerr != nil {
			dm.logger.Warn("segment cleanup failed",
				zap.String("job_id", job.ID),
				zap.Error(cerr))
		}

		dm.rememberTerminal(snap)
	})
}

// rememberTerminal destroys the live tracking entry for the job and
// keeps its terminal snapshot in a bounded table so listing and stats
// still see recent downloads. The control handle and cancel func are
// released with the entry.
func (dm *DownloadManager) rememberTerminal(snap domain.JobSnapshot) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	delete(dm.jobs, snap.ID)
	if _, ok := dm.recent[snap.ID]; !ok {
		dm.recentIDs = append(dm.recentIDs, snap.ID)
	}
	dm.recent[snap.ID] = snap
	for len(dm.recentIDs) > maxRecentJobs {
		delete(dm.recent, dm.recentIDs[0])
		dm.recentIDs = dm.recentIDs[1:]
	}
}

func (dm *DownloadManager) recordHistory(snap domain.JobSnapshot, filePath string) {
	meta, err := dm.twitch.VideoMetadata(context.Background(), snap.VodID)
	if err != nil {
		meta = nil
	}
	record := domain.NewDownloadRecord(snap, meta, filePath)
	if err := dm.history.Add(record); err != nil {
		dm.logger.Warn("history record failed", zap.Error(err))
		return
	}
	if limit := dm.config.Storage.HistoryLimit; limit > 0 {
		if err := dm.history.Prune(limit); err != nil {
			dm.logger.Warn("history prune failed", zap.Error(err))
		}
	}
}

// PauseDownload blocks further batch starts for the job
func (dm *DownloadManager) PauseDownload(id string) error {
	active, err := dm.liveByID(id)
	if err != nil {
		return err
	}
	active.ctrl.Pause()
	active.job.MarkPaused()
	dm.logger.Info("download paused", zap.String("job_id", id))
	return nil
}

// ResumeDownload releases a paused job
func (dm *DownloadManager) ResumeDownload(id string) error {
	active, err := dm.liveByID(id)
	if err != nil {
		return err
	}
	active.job.MarkResumed()
	active.ctrl.Resume()
	dm.logger.Info("download resumed", zap.String("job_id", id))
	return nil
}

// CancelDownload aborts the job. Works in paused state too; the abort
// wakes any pause-wait.
func (dm *DownloadManager) CancelDownload(id string) error {
	active, err := dm.liveByID(id)
	if err != nil {
		return err
	}
	if active.job.IsTerminal() {
		// settled but not yet evicted
		return fmt.Errorf("download already in terminal state: %s", active.job.Snapshot().State)
	}
	active.ctrl.Abort()
	if active.cancel != nil {
		active.cancel()
	}
	dm.logger.Info("download cancelled", zap.String("job_id", id))
	return nil
}

// GetJob returns a snapshot of a live or recently finished job
func (dm *DownloadManager) GetJob(id string) (domain.JobSnapshot, error) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	if active, ok := dm.jobs[id]; ok {
		return active.job.Snapshot(), nil
	}
	if snap, ok := dm.recent[id]; ok {
		return snap, nil
	}
	return domain.JobSnapshot{}, fmt.Errorf("download not found: %s", id)
}

// ListJobs returns snapshots of live jobs plus the retained terminal
// ones, newest terminal first
func (dm *DownloadManager) ListJobs() []domain.JobSnapshot {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	out := make([]domain.JobSnapshot, 0, len(dm.jobs)+len(dm.recent))
	for _, active := range dm.jobs {
		out = append(out, active.job.Snapshot())
	}
	for i := len(dm.recentIDs) - 1; i >= 0; i-- {
		out = append(out, dm.recent[dm.recentIDs[i]])
	}
	return out
}

// Stats aggregates job counts by state
func (dm *DownloadManager) Stats() domain.JobStats {
	var stats domain.JobStats
	for _, snap := range dm.ListJobs() {
		switch snap.State {
		case domain.StateRunning:
			stats.Active++
		case domain.StatePaused:
			stats.Paused++
		case domain.StateCompleted:
			stats.Completed++
		case domain.StateFailed:
			stats.Failed++
		case domain.StateAborted:
			stats.Aborted++
		}
	}
	return stats
}

// History returns the most recent completed download records
func (dm *DownloadManager) History(limit int) ([]*domain.DownloadRecord, error) {
	if limit <= 0 {
		limit = dm.config.Storage.HistoryLimit
	}
	return dm.history.List(limit)
}

// liveByID resolves a job that can still be controlled. Jobs already
// settled and evicted report their terminal state instead.
func (dm *DownloadManager) liveByID(id string) (*activeJob, error) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	if active, ok := dm.jobs[id]; ok {
		return active, nil
	}
	if snap, ok := dm.recent[id]; ok {
		return nil, fmt.Errorf("download already in terminal state: %s", snap.State)
	}
	return nil, fmt.Errorf("download not found: %s", id)
}
