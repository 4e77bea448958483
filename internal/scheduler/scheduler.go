package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	httpdl "github.com/tanq16/segdl/internal/downloaders/http"
	"github.com/tanq16/segdl/internal/job"
	"github.com/tanq16/segdl/internal/utils"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
	ErrClosed            = errors.New("scheduler is closed")
)

type Options struct {
	Client         utils.HTTPDoer
	ProbeTimeout   time.Duration
	SampleInterval time.Duration
	BufferSize     int
	MaxActive      int // jobs transferring at once, 0 for no limit
	Now            func() time.Time
}

type entry struct {
	ctrl    *job.Controller
	url     string
	dest    string
	threads int
}

// Scheduler owns every job controller and is the only way to reach them.
type Scheduler struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger
	events *dispatcher
	wg     sync.WaitGroup

	mu      sync.Mutex
	jobs    map[string]*entry
	order   []string
	pending deque.Deque[*job.Controller]
	active  int
	closed  bool
}

func New(opts Options) *Scheduler {
	if opts.Client == nil {
		opts.Client = utils.NewHTTPClient(utils.HTTPClientConfig{})
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		log:    utils.GetLogger("scheduler"),
		events: newDispatcher(),
		jobs:   make(map[string]*entry),
	}
}

// Submit validates rawURL, picks a free destination in destDir and queues
// the job. threads outside 1..MaxConnections is clamped, 0 means the default.
func (s *Scheduler) Submit(ctx context.Context, rawURL, destDir string, threads int) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("invalid URL %q: missing host", rawURL)
	}
	threads = ClampThreads(threads)
	if destDir == "" {
		destDir = "."
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("error creating output directory: %w", err)
	}
	if s.isClosed() {
		return "", ErrClosed
	}

	// name hint only; the controller probes again when it starts
	info, _ := httpdl.Probe(ctx, s.opts.Client, rawURL, s.opts.ProbeTimeout)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}
	dest := httpdl.ResolveDestination(destDir, rawURL, info, s.opts.Now(), s.takenLocked)
	id := uuid.NewString()
	e := &entry{url: rawURL, dest: dest, threads: threads}
	e.ctrl = s.newController(id, e)
	s.jobs[id] = e
	s.order = append(s.order, id)
	s.scheduleLocked(e.ctrl)
	s.log.Info().Str("job", id).Str("url", rawURL).Str("dest", dest).Int("threads", threads).Msg("Job submitted")
	return id, nil
}

// ClampThreads maps a requested connection count into 1..MaxConnections.
func ClampThreads(threads int) int {
	switch {
	case threads <= 0:
		return utils.DefaultConnections
	case threads > utils.MaxConnections:
		return utils.MaxConnections
	}
	return threads
}

func (s *Scheduler) Pause(id string) error {
	ctrl, err := s.lookup(id)
	if err != nil {
		return err
	}
	return ctrl.Pause()
}

// Resume continues a paused job. A failed or cancelled job is restarted
// from byte 0 by a new controller with the same URL, destination and
// thread count.
func (s *Scheduler) Resume(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	e, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	switch e.ctrl.Status() {
	case job.StatusPaused:
		return e.ctrl.Resume()
	case job.StatusFailed, job.StatusCancelled:
		e.ctrl = s.newController(id, e)
		s.scheduleLocked(e.ctrl)
		s.log.Info().Str("job", id).Msg("Job restarted")
		return nil
	default:
		return job.ErrInvalidTransition
	}
}

func (s *Scheduler) Cancel(id string) error {
	ctrl, err := s.lookup(id)
	if err != nil {
		return err
	}
	return ctrl.Cancel()
}

// Remove cancels the job if it is still live, waits for its cleanup and
// forgets it.
func (s *Scheduler) Remove(id string) error {
	ctrl, err := s.lookup(id)
	if err != nil {
		return err
	}
	if !ctrl.Status().Terminal() {
		ctrl.Cancel()
	}
	<-ctrl.Done()

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	for i, jobID := range s.order {
		if jobID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.log.Debug().Str("job", id).Msg("Job removed")
	return nil
}

func (s *Scheduler) Get(id string) (job.Snapshot, error) {
	ctrl, err := s.lookup(id)
	if err != nil {
		return job.Snapshot{}, err
	}
	return ctrl.Snapshot(), nil
}

// List returns snapshots in submission order.
func (s *Scheduler) List() []job.Snapshot {
	s.mu.Lock()
	ctrls := make([]*job.Controller, 0, len(s.order))
	for _, id := range s.order {
		ctrls = append(ctrls, s.jobs[id].ctrl)
	}
	s.mu.Unlock()
	snaps := make([]job.Snapshot, len(ctrls))
	for i, c := range ctrls {
		snaps[i] = c.Snapshot()
	}
	return snaps
}

// Wait blocks until the job's current controller reaches a terminal status.
func (s *Scheduler) Wait(ctx context.Context, id string) (job.Snapshot, error) {
	ctrl, err := s.lookup(id)
	if err != nil {
		return job.Snapshot{}, err
	}
	select {
	case <-ctrl.Done():
		return ctrl.Snapshot(), nil
	case <-ctx.Done():
		return ctrl.Snapshot(), ctx.Err()
	}
}

// TotalSpeed sums the current speed of every transferring job.
func (s *Scheduler) TotalSpeed() float64 {
	var total float64
	for _, snap := range s.List() {
		if snap.Status == job.StatusDownloading {
			total += snap.Speed
		}
	}
	return total
}

// Events streams every job's progress and status changes. The channel must
// be drained; it is closed after Close once all queued events are delivered.
func (s *Scheduler) Events() <-chan Event {
	return s.events.out
}

// Close cancels every live job, waits for their cleanup and ends the event stream.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	var ctrls []*job.Controller
	for _, e := range s.jobs {
		ctrls = append(ctrls, e.ctrl)
	}
	s.mu.Unlock()

	for _, c := range ctrls {
		if !c.Status().Terminal() {
			c.Cancel()
		}
	}
	s.cancel()
	for _, c := range ctrls {
		<-c.Done()
	}
	s.wg.Wait()
	s.events.close()
	s.log.Debug().Int("jobs", len(ctrls)).Msg("Scheduler closed")
}

func (s *Scheduler) newController(id string, e *entry) *job.Controller {
	return job.NewController(job.Config{
		ID:             id,
		URL:            e.url,
		Dest:           e.dest,
		Threads:        e.threads,
		Client:         s.opts.Client,
		ProbeTimeout:   s.opts.ProbeTimeout,
		SampleInterval: s.opts.SampleInterval,
		BufferSize:     s.opts.BufferSize,
		Observer:       observer{d: s.events},
		Now:            s.opts.Now,
	})
}

// scheduleLocked starts ctrl now or parks it until a slot frees up.
func (s *Scheduler) scheduleLocked(ctrl *job.Controller) {
	if s.opts.MaxActive > 0 && s.active >= s.opts.MaxActive {
		s.pending.PushBack(ctrl)
		return
	}
	s.startLocked(ctrl)
}

func (s *Scheduler) startLocked(ctrl *job.Controller) {
	if err := ctrl.Start(s.ctx); err != nil {
		return
	}
	s.active++
	s.wg.Add(1)
	go s.watch(ctrl)
}

func (s *Scheduler) watch(ctrl *job.Controller) {
	defer s.wg.Done()
	<-ctrl.Done()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active--
	for !s.closed && s.pending.Len() > 0 && (s.opts.MaxActive <= 0 || s.active < s.opts.MaxActive) {
		next := s.pending.PopFront()
		if next.Status() != job.StatusQueued {
			continue // cancelled while waiting
		}
		s.startLocked(next)
	}
}

// takenLocked treats paths held by any known job as occupied.
func (s *Scheduler) takenLocked(path string) bool {
	for _, e := range s.jobs {
		if e.dest == path {
			return true
		}
	}
	return utils.PathExists(path)
}

// lookup returns the job's current controller.
func (s *Scheduler) lookup(id string) (*job.Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return e.ctrl, nil
}

func (s *Scheduler) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
