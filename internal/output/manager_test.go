package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	httpdl "github.com/tanq16/segdl/internal/downloaders/http"
	"github.com/tanq16/segdl/internal/job"
	"github.com/tanq16/segdl/internal/scheduler"
)

func status(id string, from, to job.Status, err error) scheduler.Event {
	return scheduler.Event{
		Type:   scheduler.EventStatus,
		JobID:  id,
		Change: job.StatusChange{ID: id, From: from, To: to, Err: err, Kind: httpdl.KindOf(err), Stamp: time.Now()},
	}
}

func TestManagerSummary(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(&buf)
	m.Register("a", "a.bin")
	m.Register("b", "b.bin")
	m.Register("c", "c.bin")

	events := make(chan scheduler.Event, 16)
	events <- status("a", job.StatusQueued, job.StatusDownloading, nil)
	events <- scheduler.Event{Type: scheduler.EventProgress, JobID: "a", Progress: job.Progress{ID: "a", Downloaded: 2048, Total: 2048}}
	events <- status("a", job.StatusDownloading, job.StatusCompleted, nil)
	events <- status("b", job.StatusQueued, job.StatusDownloading, nil)
	events <- status("b", job.StatusDownloading, job.StatusFailed, errors.New("network error: range request: connection reset"))
	events <- status("c", job.StatusQueued, job.StatusCancelled, nil)
	close(events)
	m.Consume(events)

	if m.Failures() != 1 {
		t.Errorf("Failures() = %d, want 1", m.Failures())
	}
	m.ShowSummary()
	out := buf.String()
	for _, want := range []string{
		"Summary",
		"Completed a.bin (2.0 KiB)",
		"Failed b.bin",
		"Cancelled c.bin",
		"Completed 1 of 3",
		"Failed 1 of 3",
		"Cancelled 1 of 3",
		"connection reset",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary is missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") && strings.Contains(out, "A\033[J") {
		t.Error("non-terminal output must not move the cursor")
	}
}

func TestRenderActiveJob(t *testing.T) {
	m := NewManager(&bytes.Buffer{})
	m.SetSpeedSource(func() float64 { return 3 * 1024 * 1024 })
	m.Register("x", "movie.mkv")
	m.Handle(status("x", job.StatusQueued, job.StatusDownloading, nil))
	m.Handle(scheduler.Event{Type: scheduler.EventProgress, JobID: "x", Progress: job.Progress{
		Downloaded: 512, Total: 1024, Speed: 1024, ETA: 90 * time.Second, ETAKnown: true,
	}})
	lines := strings.Join(m.renderLines(20), "\n")
	for _, want := range []string{"Downloading movie.mkv", "50.0%", "512 B / 1.0 KiB", "1.0 KiB/s", "ETA 01:30", "Total speed 3.0 MiB/s"} {
		if !strings.Contains(lines, want) {
			t.Errorf("view is missing %q:\n%s", want, lines)
		}
	}

	m.Handle(status("x", job.StatusDownloading, job.StatusPaused, nil))
	if lines := strings.Join(m.renderLines(20), "\n"); !strings.Contains(lines, "Paused movie.mkv") {
		t.Errorf("paused job not shown:\n%s", lines)
	}
}

func TestRenderRespectsHeight(t *testing.T) {
	m := NewManager(&bytes.Buffer{})
	for i := range 30 {
		id := string(rune('a' + i%26)) + strings.Repeat("x", i/26)
		m.Handle(status(id, job.StatusQueued, job.StatusCancelled, nil))
	}
	if n := len(m.renderLines(10)); n > 10 {
		t.Errorf("rendered %d lines into 10", n)
	}
}

func TestProgressBarUnknownTotal(t *testing.T) {
	if bar := PrintProgressBar(100, 0, 10); strings.Contains(bar, "%") {
		t.Errorf("unknown total rendered a percentage: %q", bar)
	}
	if bar := PrintProgressBar(5, 10, 10); !strings.Contains(bar, "50.0%") {
		t.Errorf("bar = %q", bar)
	}
}
