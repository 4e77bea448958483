package httpdl

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/tanq16/segdl/internal/utils"
)

// Stream downloads the whole resource straight into outputPath. total is
// the probed size (0 if unknown); when it is unknown the response's
// Content-Length is reported through onLength. The partial file is
// removed if the transfer does not complete.
func (f *Fetcher) Stream(ctx context.Context, outputPath string, total int64, onLength func(int64)) (err error) {
	log := utils.GetLogger("simple-download")
	outFile, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fsError("create output file", err)
	}
	defer func() {
		outFile.Close()
		if err != nil {
			os.Remove(outputPath)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return networkError("create request", err)
	}
	req.Header.Set("Connection", "keep-alive")
	log.Debug().Str("url", f.URL).Msg("Starting simple download")
	resp, err := f.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return networkError("GET request", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return networkError("GET request", fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}
	if total <= 0 && resp.ContentLength > 0 {
		total = resp.ContentLength
		if onLength != nil {
			onLength(total)
		}
	}

	limit := int64(-1)
	if total > 0 {
		limit = total
	}
	var written atomic.Int64
	n, err := f.copyBody(ctx, resp.Body, outFile, limit, &written)
	if err != nil {
		return err
	}
	if total > 0 && n != total {
		return networkError("read body", fmt.Errorf("size mismatch: expected %d bytes, got %d", total, n))
	}
	if err := outFile.Sync(); err != nil {
		return fsError("sync output file", err)
	}
	log.Debug().Int64("downloadedSize", n).Msg("Simple download completed")
	return nil
}
