// Package testutils provides an in-process HTTP server for download tests.
package testutils

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// GenerateTestData returns size bytes of a deterministic, non-repeating-per-KiB pattern.
func GenerateTestData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte((i/1024 + i) % 251)
	}
	return data
}

type ServerOptions struct {
	NoRanges     bool          // no Accept-Ranges header, Range requests get the full body
	NoLength     bool          // no Content-Length on HEAD or plain GET
	Disposition  string        // Content-Disposition value
	HeadStatus   int           // status for HEAD, default 200
	RejectRanges bool          // GET with Range answers 416
	ChunkSize    int           // body write size, default 16 KiB
	Throttle     time.Duration // pause between body writes
	FailFirst    int32         // the first N GETs drop the connection half way through the body
}

// RangeServer serves Data at any path and records what it was asked for.
type RangeServer struct {
	*httptest.Server
	Data []byte
	opts ServerOptions

	mu     sync.Mutex
	ranges []string
	heads  atomic.Int32
	gets   atomic.Int32
}

func NewRangeServer(t *testing.T, data []byte, opts ServerOptions) *RangeServer {
	t.Helper()
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 16 * 1024
	}
	s := &RangeServer{Data: data, opts: opts}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Ranges returns the Range headers of every GET so far, "" for plain GETs.
func (s *RangeServer) Ranges() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ranges...)
}

func (s *RangeServer) Heads() int {
	return int(s.heads.Load())
}

func (s *RangeServer) Gets() int {
	return int(s.gets.Load())
}

func (s *RangeServer) handle(w http.ResponseWriter, r *http.Request) {
	size := int64(len(s.Data))
	if s.opts.Disposition != "" {
		w.Header().Set("Content-Disposition", s.opts.Disposition)
	}
	if !s.opts.NoRanges {
		w.Header().Set("Accept-Ranges", "bytes")
	}

	if r.Method == http.MethodHead {
		s.heads.Add(1)
		if !s.opts.NoLength {
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		}
		if s.opts.HeadStatus != 0 {
			w.WriteHeader(s.opts.HeadStatus)
		}
		return
	}

	n := s.gets.Add(1)
	rangeHeader := r.Header.Get("Range")
	s.mu.Lock()
	s.ranges = append(s.ranges, rangeHeader)
	s.mu.Unlock()

	start, end := int64(0), size-1
	status := http.StatusOK
	if rangeHeader != "" && !s.opts.NoRanges {
		if s.opts.RejectRanges {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		spec := strings.TrimPrefix(rangeHeader, "bytes=")
		first, last, _ := strings.Cut(spec, "-")
		start, _ = strconv.ParseInt(first, 10, 64)
		if last != "" {
			end, _ = strconv.ParseInt(last, 10, 64)
		}
		end = min(end, size-1)
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
		status = http.StatusPartialContent
	}
	body := s.Data[start : end+1]
	if status == http.StatusPartialContent || !s.opts.NoLength {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	}
	w.WriteHeader(status)

	failing := n <= s.opts.FailFirst
	if failing {
		body = body[:len(body)/2]
	}
	flusher, _ := w.(http.Flusher)
	for len(body) > 0 {
		select {
		case <-r.Context().Done():
			return
		default:
		}
		k := min(s.opts.ChunkSize, len(body))
		if _, err := w.Write(body[:k]); err != nil {
			return
		}
		body = body[k:]
		if flusher != nil {
			flusher.Flush()
		}
		if s.opts.Throttle > 0 {
			time.Sleep(s.opts.Throttle)
		}
	}
	if failing {
		panic(http.ErrAbortHandler)
	}
}
