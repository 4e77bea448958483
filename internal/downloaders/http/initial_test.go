package httpdl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tanq16/segdl/internal/testutils"
	"github.com/tanq16/segdl/internal/utils"
)

func TestProbe(t *testing.T) {
	data := testutils.GenerateTestData(4096)
	tests := []struct {
		name       string
		opts       testutils.ServerOptions
		wantSize   int64
		wantRanges bool
	}{
		{"ranges and length", testutils.ServerOptions{}, 4096, true},
		{"no ranges", testutils.ServerOptions{NoRanges: true}, 4096, false},
		{"no length", testutils.ServerOptions{NoLength: true}, 0, true},
		{"head forbidden falls back to ranged get", testutils.ServerOptions{HeadStatus: http.StatusForbidden}, 4096, true},
		{"head not allowed falls back to ranged get", testutils.ServerOptions{HeadStatus: http.StatusMethodNotAllowed}, 4096, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testutils.NewRangeServer(t, data, tt.opts)
			client := utils.NewHTTPClient(utils.HTTPClientConfig{})
			info, err := Probe(context.Background(), client, srv.URL+"/file.bin", time.Second)
			if err != nil {
				t.Fatalf("Probe() error = %v", err)
			}
			if info.Size != tt.wantSize {
				t.Errorf("Size = %d, want %d", info.Size, tt.wantSize)
			}
			if info.AcceptRanges != tt.wantRanges {
				t.Errorf("AcceptRanges = %v, want %v", info.AcceptRanges, tt.wantRanges)
			}
		})
	}
}

func TestProbeFailureSelectsSingleStream(t *testing.T) {
	srv := testutils.NewRangeServer(t, []byte("abc"), testutils.ServerOptions{HeadStatus: http.StatusNotFound})
	client := utils.NewHTTPClient(utils.HTTPClientConfig{})
	info, err := Probe(context.Background(), client, srv.URL, time.Second)
	if err == nil {
		t.Fatal("expected an error for a 404 probe")
	}
	if info != (FileInfo{}) {
		t.Fatalf("info = %+v, want zero value", info)
	}
}

func TestProbeTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	client := utils.NewHTTPClient(utils.HTTPClientConfig{})
	start := time.Now()
	info, err := Probe(context.Background(), client, srv.URL, 100*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if info.Size != 0 || info.AcceptRanges {
		t.Fatalf("info = %+v, want zero value", info)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("probe was not bounded by its timeout")
	}
}

func TestProbeRecordsDispositionAndRedirect(t *testing.T) {
	srv := testutils.NewRangeServer(t, []byte("hello"), testutils.ServerOptions{Disposition: `attachment; filename="greeting.txt"`})
	redirect := httptest.NewServer(http.RedirectHandler(srv.URL+"/final", http.StatusFound))
	defer redirect.Close()

	client := utils.NewHTTPClient(utils.HTTPClientConfig{})
	info, err := Probe(context.Background(), client, redirect.URL, time.Second)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if info.FinalURL != srv.URL+"/final" {
		t.Errorf("FinalURL = %q", info.FinalURL)
	}
	if FileNameFromDisposition(info.Disposition) != "greeting.txt" {
		t.Errorf("Disposition = %q", info.Disposition)
	}
}

func TestParseContentRange(t *testing.T) {
	tests := []struct {
		header            string
		start, end, total int64
		wantErr           bool
	}{
		{"bytes 0-0/1000", 0, 0, 1000, false},
		{"bytes 100-199/*", 100, 199, 0, false},
		{"bytes */1000", 0, 0, 0, true},
		{"items 0-1/2", 0, 0, 0, true},
		{"", 0, 0, 0, true},
	}
	for _, tt := range tests {
		start, end, total, err := parseContentRange(tt.header)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseContentRange(%q) error = %v", tt.header, err)
			continue
		}
		if !tt.wantErr && (start != tt.start || end != tt.end || total != tt.total) {
			t.Errorf("parseContentRange(%q) = %d, %d, %d", tt.header, start, end, total)
		}
	}
}
