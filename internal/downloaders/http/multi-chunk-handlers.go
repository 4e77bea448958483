package httpdl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/tanq16/segdl/internal/utils"
)

// Outcome is the terminal flag of a segment.
type Outcome int32

const (
	OutcomePending Outcome = iota
	OutcomeSucceeded
	OutcomeFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "pending"
	}
}

// Segment is one byte range of a job and the part file it is written to.
type Segment struct {
	ID       int
	Range    Range
	TempPath string

	written atomic.Int64
	outcome atomic.Int32
}

func NewSegment(id int, r Range, outputPath string) *Segment {
	return &Segment{
		ID:       id,
		Range:    r,
		TempPath: fmt.Sprintf("%s.part%d", outputPath, id),
	}
}

func (s *Segment) Written() int64 {
	return s.written.Load()
}

func (s *Segment) Outcome() Outcome {
	return Outcome(s.outcome.Load())
}

func (s *Segment) finish(err error) {
	switch {
	case err == nil:
		s.outcome.Store(int32(OutcomeSucceeded))
	case errors.Is(err, context.Canceled):
		s.outcome.Store(int32(OutcomeCancelled))
	default:
		s.outcome.Store(int32(OutcomeFailed))
	}
}

// Fetcher streams resources into files. Counter is shared by every fetch
// of one job and is the only state they mutate concurrently.
type Fetcher struct {
	Client     utils.HTTPDoer
	URL        string
	Gate       *PauseGate
	Counter    *atomic.Int64
	BufferSize int
}

// Segment downloads seg.Range into seg.TempPath. On cancellation the
// partial part file is left for the caller to remove.
func (f *Fetcher) Segment(ctx context.Context, seg *Segment) (err error) {
	log := utils.GetLogger("segment").With().Int("segment", seg.ID).Logger()
	defer func() { seg.finish(err) }()

	tempFile, err := os.OpenFile(seg.TempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fsError("open part file", err)
	}
	defer tempFile.Close()

	rangeHeader := fmt.Sprintf("bytes=%d-%d", seg.Range.Start, seg.Range.End)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return networkError("create request", err)
	}
	req.Header.Set("Range", rangeHeader)
	req.Header.Set("Connection", "keep-alive")
	log.Debug().Str("range", rangeHeader).Msg("Sending range request")
	resp, err := f.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return networkError("range request", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return networkError("range request", utils.ErrRangeRequestsNotSupported)
	}
	if resp.StatusCode != http.StatusPartialContent {
		return networkError("range request", fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}
	start, _, _, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return networkError("range request", err)
	}
	if start != seg.Range.Start {
		return networkError("range request", fmt.Errorf("server answered from byte %d, asked for %d", start, seg.Range.Start))
	}

	n, err := f.copyBody(ctx, resp.Body, tempFile, seg.Range.Size(), &seg.written)
	if err != nil {
		return err
	}
	if n != seg.Range.Size() {
		return networkError("read body", fmt.Errorf("size mismatch: expected %d bytes, got %d", seg.Range.Size(), n))
	}
	if err := tempFile.Close(); err != nil {
		return fsError("close part file", err)
	}
	log.Debug().Int64("bytes", n).Msg("Segment completed")
	return nil
}

// copyBody moves body into out one buffer at a time, never past limit
// (limit < 0 means unbounded). Cancellation and pause are honoured before
// every read, so they take effect within one increment.
func (f *Fetcher) copyBody(ctx context.Context, body io.Reader, out io.Writer, limit int64, written *atomic.Int64) (int64, error) {
	log := utils.GetLogger("fetch")
	sometimes := rate.Sometimes{Interval: 2 * time.Second}
	bufSize := f.BufferSize
	if bufSize <= 0 {
		bufSize = utils.DefaultBufferSize
	}
	buffer := make([]byte, bufSize)
	var total int64
	for limit < 0 || total < limit {
		if err := f.Gate.Wait(ctx); err != nil {
			return total, err
		}
		chunk := buffer
		if limit >= 0 {
			chunk = buffer[:min(int64(len(buffer)), limit-total)]
		}
		bytesRead, readErr := body.Read(chunk)
		if bytesRead > 0 {
			if _, err := out.Write(chunk[:bytesRead]); err != nil {
				return total, fsError("write", err)
			}
			total += int64(bytesRead)
			written.Add(int64(bytesRead))
			if f.Counter != nil {
				f.Counter.Add(int64(bytesRead))
			}
			sometimes.Do(func() {
				log.Debug().Str("url", f.URL).Int64("bytes", total).Msg("Transfer progress")
			})
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			if ctx.Err() != nil {
				return total, ctx.Err()
			}
			return total, networkError("read body", readErr)
		}
	}
	return total, nil
}
