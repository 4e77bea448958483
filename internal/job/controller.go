package job

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	httpdl "github.com/tanq16/segdl/internal/downloaders/http"
	"github.com/tanq16/segdl/internal/utils"
)

type Config struct {
	ID             string
	URL            string
	Dest           string
	Threads        int
	Client         utils.HTTPDoer
	ProbeTimeout   time.Duration
	SampleInterval time.Duration
	BufferSize     int
	Observer       Observer
	Now            func() time.Time
}

// Controller drives one download from probe to a terminal status. It is
// the only writer of the job's status; fetchers report through their
// return values and the shared byte counter.
type Controller struct {
	cfg     Config
	gate    *httpdl.PauseGate
	counter atomic.Int64
	log     zerolog.Logger
	done    chan struct{}

	mu              sync.Mutex
	status          Status
	total           int64
	speed           float64
	eta             time.Duration
	etaKnown        bool
	segmented       bool
	segments        []*httpdl.Segment
	err             error
	errKind         httpdl.Kind
	started         bool
	cancelRequested bool
	cancel          context.CancelFunc
	createdAt       time.Time
}

func NewController(cfg Config) *Controller {
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = utils.DefaultSampleInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Client == nil {
		cfg.Client = utils.NewHTTPClient(utils.HTTPClientConfig{})
	}
	return &Controller{
		cfg:       cfg,
		gate:      httpdl.NewPauseGate(),
		log:       utils.GetLogger("job").With().Str("job", cfg.ID).Logger(),
		done:      make(chan struct{}),
		status:    StatusQueued,
		createdAt: cfg.Now(),
	}
}

// Start launches the supervising goroutine. Cancelling ctx has the same
// effect as Cancel.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.status != StatusQueued {
		return ErrInvalidTransition
	}
	c.started = true
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
	return nil
}

func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusDownloading || c.cancelRequested {
		return ErrInvalidTransition
	}
	c.gate.Pause()
	c.setStatusLocked(StatusPaused, nil)
	return nil
}

func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusPaused || c.cancelRequested {
		return ErrInvalidTransition
	}
	c.gate.Resume()
	c.setStatusLocked(StatusDownloading, nil)
	return nil
}

// Cancel asks the job to stop. The status becomes Cancelled once every
// fetcher has returned and the temporary files are gone; wait on Done to
// observe it. A job that was never started is cancelled immediately.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status.Terminal() {
		return ErrInvalidTransition
	}
	if c.cancelRequested {
		return nil
	}
	c.cancelRequested = true
	if !c.started {
		c.setStatusLocked(StatusCancelled, nil)
		close(c.done)
		return nil
	}
	c.cancel()
	return nil
}

// Done is closed when the job reaches a terminal status.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		ID:         c.cfg.ID,
		URL:        c.cfg.URL,
		Dest:       c.cfg.Dest,
		Threads:    c.cfg.Threads,
		Total:      c.total,
		Downloaded: c.counter.Load(),
		Speed:      c.speed,
		ETA:        c.eta,
		ETAKnown:   c.etaKnown,
		Status:     c.status,
		Segmented:  c.segmented,
		Segments:   segmentSnapshots(c.segments),
		Err:        c.err,
		ErrKind:    c.errKind,
		CreatedAt:  c.createdAt,
	}
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.done)
	defer c.cancel()

	info, err := httpdl.Probe(ctx, c.cfg.Client, c.cfg.URL, c.cfg.ProbeTimeout)
	if err != nil {
		c.log.Debug().Err(err).Msg("Probe unusable, using a single stream")
	}
	ranges := httpdl.Partition(info.Size, c.cfg.Threads)
	segmented := info.AcceptRanges && info.Size > 0 && c.cfg.Threads > 1 && len(ranges) > 1

	c.mu.Lock()
	if c.cancelRequested || ctx.Err() != nil {
		c.setStatusLocked(StatusCancelled, nil)
		c.mu.Unlock()
		return
	}
	c.total = info.Size
	c.segmented = segmented
	c.setStatusLocked(StatusDownloading, nil)
	c.mu.Unlock()
	c.log.Info().Str("url", c.cfg.URL).Int64("size", info.Size).Bool("segmented", segmented).Int("segments", len(ranges)).Msg("Download started")

	fetcher := &httpdl.Fetcher{
		Client:     c.cfg.Client,
		URL:        c.cfg.URL,
		Gate:       c.gate,
		Counter:    &c.counter,
		BufferSize: c.cfg.BufferSize,
	}
	stopSampler := c.startSampler()

	var segments []*httpdl.Segment
	if segmented {
		segments = make([]*httpdl.Segment, len(ranges))
		for i, r := range ranges {
			segments[i] = httpdl.NewSegment(i, r, c.cfg.Dest)
		}
		c.mu.Lock()
		c.segments = segments
		c.mu.Unlock()
		err = c.fetchSegments(ctx, fetcher, segments)
		if err == nil {
			err = httpdl.Merge(ctx, c.cfg.Dest, segments, info.Size)
		}
	} else {
		err = fetcher.Stream(ctx, c.cfg.Dest, info.Size, c.adoptTotal)
	}
	stopSampler()
	c.finish(ctx, err, segments)
}

// fetchSegments runs one fetcher per segment. The first failure cancels
// the others and is the error returned.
func (c *Controller) fetchSegments(ctx context.Context, fetcher *httpdl.Fetcher, segments []*httpdl.Segment) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, seg := range segments {
		g.Go(func() error {
			return fetcher.Segment(gctx, seg)
		})
	}
	return g.Wait()
}

func (c *Controller) finish(ctx context.Context, err error, segments []*httpdl.Segment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cancelled := c.cancelRequested || (err != nil && ctx.Err() != nil)
	switch {
	case cancelled:
		c.removeTemps(segments)
		if err == nil {
			// the merge finished before the cancel was observed
			os.Remove(c.cfg.Dest)
		}
		c.log.Info().Msg("Download cancelled")
		c.setStatusLocked(StatusCancelled, nil)
	case err != nil:
		c.err = err
		c.errKind = httpdl.KindOf(err)
		if c.errKind == httpdl.KindMerge {
			c.log.Warn().Int("parts", len(segments)).Msg("Merge failed, part files kept")
		} else {
			c.removeTemps(segments)
		}
		c.log.Error().Err(err).Str("kind", string(c.errKind)).Msg("Download failed")
		c.setStatusLocked(StatusFailed, err)
	default:
		if c.total <= 0 {
			c.total = c.counter.Load()
		}
		c.log.Info().Str("dest", c.cfg.Dest).Int64("bytes", c.counter.Load()).Msg("Download completed")
		c.setStatusLocked(StatusCompleted, nil)
	}
}

// startSampler emits progress every sample interval until the returned
// function is called, which also emits a final sample.
func (c *Controller) startSampler() func() {
	est := NewEstimator(c.cfg.Now)
	c.sample(est)
	stop := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(c.cfg.SampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sample(est)
			case <-stop:
				return
			}
		}
	}()
	return func() {
		close(stop)
		<-stopped
		c.sample(est)
	}
}

func (c *Controller) sample(est *Estimator) {
	bytes := c.counter.Load()
	c.mu.Lock()
	total := c.total
	speed, eta, known := est.Sample(bytes, total)
	c.speed, c.eta, c.etaKnown = speed, eta, known
	c.mu.Unlock()
	if c.cfg.Observer != nil {
		c.cfg.Observer.OnProgress(Progress{
			ID:         c.cfg.ID,
			Downloaded: bytes,
			Total:      total,
			Speed:      speed,
			ETA:        eta,
			ETAKnown:   known,
		})
	}
}

// adoptTotal takes the length of a single-stream response when the probe
// did not report one. The total never shrinks.
func (c *Controller) adoptTotal(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > c.total {
		c.total = n
	}
}

// setStatusLocked must be called with c.mu held.
func (c *Controller) setStatusLocked(to Status, err error) {
	from := c.status
	if from == to {
		return
	}
	if !canTransition(from, to) {
		c.log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("Ignoring invalid transition")
		return
	}
	c.status = to
	if to == StatusCancelled || to == StatusCompleted {
		c.speed, c.eta, c.etaKnown = 0, 0, false
	}
	c.log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("Status changed")
	if c.cfg.Observer != nil {
		c.cfg.Observer.OnStatusChange(StatusChange{
			ID:    c.cfg.ID,
			From:  from,
			To:    to,
			Err:   err,
			Kind:  httpdl.KindOf(err),
			Stamp: c.cfg.Now(),
		})
	}
}

func (c *Controller) removeTemps(segments []*httpdl.Segment) {
	for _, seg := range segments {
		if err := os.Remove(seg.TempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.log.Warn().Err(err).Str("path", seg.TempPath).Msg("Failed to remove part file")
		}
	}
}

func segmentSnapshots(segments []*httpdl.Segment) []SegmentSnapshot {
	if len(segments) == 0 {
		return nil
	}
	out := make([]SegmentSnapshot, len(segments))
	for i, seg := range segments {
		out[i] = SegmentSnapshot{
			ID:       seg.ID,
			Range:    seg.Range,
			TempPath: seg.TempPath,
			Written:  seg.Written(),
			Outcome:  seg.Outcome(),
		}
	}
	return out
}
