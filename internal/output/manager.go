package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tanq16/segdl/internal/job"
	"github.com/tanq16/segdl/internal/scheduler"
	"github.com/tanq16/segdl/internal/utils"
)

type jobOutput struct {
	id         string
	label      string
	index      int
	status     job.Status
	downloaded int64
	total      int64
	speed      float64
	eta        time.Duration
	etaKnown   bool
	startTime  time.Time
	endTime    time.Time
	err        error
}

type ErrorReport struct {
	Label string
	Error error
	Time  time.Time
}

// Manager renders the scheduler's event stream as a live per-job view.
type Manager struct {
	out         io.Writer
	live        bool // redraw in place with cursor movement
	mutex       sync.RWMutex
	outputs     map[string]*jobOutput
	errors      []ErrorReport
	numLines    int
	count       int
	displayTick time.Duration
	speedFn     func() float64
	doneCh      chan struct{}
	displayWg   sync.WaitGroup
}

// NewManager writes to out, redrawing in place only when out is a terminal.
func NewManager(out io.Writer) *Manager {
	live := false
	if f, ok := out.(*os.File); ok {
		live = isTerminal(f.Fd())
	}
	return &Manager{
		out:         out,
		live:        live,
		outputs:     make(map[string]*jobOutput),
		displayTick: 300 * time.Millisecond,
		doneCh:      make(chan struct{}),
	}
}

// SetSpeedSource supplies the aggregate speed shown under the job list.
func (m *Manager) SetSpeedSource(fn func() float64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.speedFn = fn
}

// Register names a job before its first event arrives.
func (m *Manager) Register(id, label string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.entryLocked(id).label = label
}

func (m *Manager) entryLocked(id string) *jobOutput {
	info, ok := m.outputs[id]
	if !ok {
		m.count++
		info = &jobOutput{id: id, label: id, index: m.count, startTime: time.Now()}
		m.outputs[id] = info
	}
	return info
}

// Handle applies one event.
func (m *Manager) Handle(ev scheduler.Event) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	info := m.entryLocked(ev.JobID)
	switch ev.Type {
	case scheduler.EventProgress:
		p := ev.Progress
		info.downloaded = p.Downloaded
		info.total = max(info.total, p.Total)
		info.speed, info.eta, info.etaKnown = p.Speed, p.ETA, p.ETAKnown
	case scheduler.EventStatus:
		c := ev.Change
		if c.From == job.StatusQueued && c.To == job.StatusDownloading {
			info.startTime = c.Stamp
			info.err = nil
		}
		info.status = c.To
		if c.To.Terminal() {
			info.endTime = c.Stamp
			info.speed, info.etaKnown = 0, false
		}
		if c.To == job.StatusFailed && c.Err != nil {
			info.err = c.Err
			m.errors = append(m.errors, ErrorReport{Label: info.label, Error: c.Err, Time: c.Stamp})
		}
	}
}

// Consume handles events until the channel is closed.
func (m *Manager) Consume(events <-chan scheduler.Event) {
	for ev := range events {
		m.Handle(ev)
	}
}

func (m *Manager) sortJobs() (active, queued, finished []*jobOutput) {
	var all []*jobOutput
	for _, info := range m.outputs {
		all = append(all, info)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].index < all[j].index
	})
	for _, info := range all {
		switch {
		case info.status.Terminal():
			finished = append(finished, info)
		case info.status == job.StatusQueued:
			queued = append(queued, info)
		default:
			active = append(active, info)
		}
	}
	return active, queued, finished
}

// renderLines lays out the current view in at most maxLines lines.
func (m *Manager) renderLines(maxLines int) []string {
	indent := strings.Repeat(" ", 2)
	var lines []string
	active, queued, finished := m.sortJobs()

	needed := 2*len(active) + len(queued) + len(finished) + 1
	if needed > maxLines {
		keep := max(0, maxLines-(needed-len(finished)))
		finished = finished[len(finished)-min(keep, len(finished)):]
	}
	for _, info := range active {
		elapsed := time.Since(info.startTime).Round(time.Second)
		lines = append(lines, fmt.Sprintf("%s%s %s %s", indent, statusIndicator(info.status), debugStyle.Render(elapsed.String()), statusMessage(info)))
		lines = append(lines, indent+indent+indent+progressLine(info))
	}
	for _, info := range queued {
		lines = append(lines, fmt.Sprintf("%s%s %s", indent, statusIndicator(info.status), statusMessage(info)))
	}
	for _, info := range finished {
		took := info.endTime.Sub(info.startTime).Round(time.Second)
		lines = append(lines, fmt.Sprintf("%s%s %s %s", indent, statusIndicator(info.status), debugStyle.Render(took.String()), statusMessage(info)))
	}
	if m.speedFn != nil && len(active) > 0 {
		lines = append(lines, indent+infoStyle.Render("Total speed "+utils.FormatSpeed(m.speedFn())))
	}
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines
}

func (m *Manager) updateDisplay() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.live {
		return
	}
	if m.numLines > 0 {
		fmt.Fprintf(m.out, "\033[%dA\033[J", m.numLines)
	}
	lines := m.renderLines(getTerminalHeight() - 3)
	for _, line := range lines {
		fmt.Fprintln(m.out, line)
	}
	m.numLines = len(lines)
}

func (m *Manager) StartDisplay() {
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.updateDisplay()
			case <-m.doneCh:
				m.updateDisplay()
				m.ShowSummary()
				return
			}
		}
	}()
}

// StopDisplay draws the final view and the summary.
func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayWg.Wait()
}

// Failures counts jobs that ended in the failed state.
func (m *Manager) Failures() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	n := 0
	for _, info := range m.outputs {
		if info.status == job.StatusFailed {
			n++
		}
	}
	return n
}

func (m *Manager) displayErrors() {
	if len(m.errors) == 0 {
		return
	}
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, strings.Repeat(" ", 2)+errorStyle.Bold(true).Render("Errors:"))
	for i, report := range m.errors {
		fmt.Fprintf(m.out, "%s%s %s %s\n",
			strings.Repeat(" ", 4),
			errorStyle.Render(fmt.Sprintf("%d.", i+1)),
			debugStyle.Render(fmt.Sprintf("[%s]", report.Time.Format("15:04:05"))),
			errorStyle.Render(report.Label))
		fmt.Fprintf(m.out, "%s%s\n", strings.Repeat(" ", 6), errorStyle.Render(fmt.Sprintf("Error: %v", report.Error)))
	}
}

func (m *Manager) ShowSummary() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if !m.live {
		_, _, finished := m.sortJobs()
		for _, line := range m.renderLines(len(finished) + 1) {
			fmt.Fprintln(m.out, line)
		}
	}
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, strings.Repeat(" ", 2)+headerStyle.Render("Summary"))
	var completed, failed, cancelled int
	for _, info := range m.outputs {
		switch info.status {
		case job.StatusCompleted:
			completed++
		case job.StatusFailed:
			failed++
		case job.StatusCancelled:
			cancelled++
		}
	}
	total := len(m.outputs)
	fmt.Fprintln(m.out, strings.Repeat(" ", 2)+success2Style.Render(fmt.Sprintf("Completed %d of %d", completed, total)))
	if cancelled > 0 {
		fmt.Fprintln(m.out, strings.Repeat(" ", 2)+warningStyle.Render(fmt.Sprintf("Cancelled %d of %d", cancelled, total)))
	}
	if failed > 0 {
		fmt.Fprintln(m.out, strings.Repeat(" ", 2)+errorStyle.Render(fmt.Sprintf("Failed %d of %d", failed, total)))
	}
	m.displayErrors()
	fmt.Fprintln(m.out)
}
