package httpdl

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tanq16/segdl/internal/utils"
)

// FileInfo is what a probe learned about a remote resource. Size is 0 when unknown.
type FileInfo struct {
	Size         int64
	AcceptRanges bool
	Disposition  string
	FinalURL     string
}

// Probe issues a metadata request for url. The returned FileInfo is always
// usable: on failure it is the zero value, which selects a single stream.
// The error is informational only.
func Probe(ctx context.Context, client utils.HTTPDoer, url string, timeout time.Duration) (FileInfo, error) {
	log := utils.GetLogger("probe")
	if timeout <= 0 {
		timeout = utils.DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	info, err := probeHead(ctx, client, url)
	if err != nil {
		log.Debug().Err(err).Str("url", url).Msg("Probe failed, falling back to single stream")
		return FileInfo{}, err
	}
	log.Debug().Str("url", url).Int64("size", info.Size).Bool("ranges", info.AcceptRanges).Msg("Probe completed")
	return info, nil
}

func probeHead(ctx context.Context, client utils.HTTPDoer, url string) (FileInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return FileInfo{}, fmt.Errorf("error creating HEAD request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return FileInfo{}, fmt.Errorf("error checking URL: %w", err)
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusMethodNotAllowed:
		// Presigned URLs and some CDNs only accept GET.
		return probeRangedGet(ctx, client, url)
	case resp.StatusCode >= 300:
		return FileInfo{}, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	info := FileInfo{
		Disposition:  resp.Header.Get("Content-Disposition"),
		AcceptRanges: strings.Contains(strings.ToLower(resp.Header.Get("Accept-Ranges")), "bytes"),
		FinalURL:     resp.Request.URL.String(),
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		size, err := strconv.ParseInt(cl, 10, 64)
		if err == nil && size > 0 {
			info.Size = size
		}
	}
	return info, nil
}

func probeRangedGet(ctx context.Context, client utils.HTTPDoer, url string) (FileInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FileInfo{}, fmt.Errorf("error creating GET request: %w", err)
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err := client.Do(req)
	if err != nil {
		return FileInfo{}, fmt.Errorf("error checking URL: %w", err)
	}
	defer resp.Body.Close()

	info := FileInfo{
		Disposition: resp.Header.Get("Content-Disposition"),
		FinalURL:    resp.Request.URL.String(),
	}
	switch resp.StatusCode {
	case http.StatusPartialContent:
		_, _, total, err := parseContentRange(resp.Header.Get("Content-Range"))
		if err != nil {
			return FileInfo{}, err
		}
		info.Size = total
		info.AcceptRanges = total > 0
	case http.StatusOK:
		info.Size = max(resp.ContentLength, 0)
	default:
		return FileInfo{}, fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return info, nil
}

// parseContentRange reads "bytes <start>-<end>/<total>". total is 0 when it is "*".
func parseContentRange(header string) (start, end, total int64, err error) {
	spec, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes ")
	if !ok {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", header)
	}
	span, size, ok := strings.Cut(spec, "/")
	if !ok {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", header)
	}
	first, last, ok := strings.Cut(span, "-")
	if !ok {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", header)
	}
	if start, err = strconv.ParseInt(first, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q: %w", header, err)
	}
	if end, err = strconv.ParseInt(last, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q: %w", header, err)
	}
	if size != "*" {
		if total, err = strconv.ParseInt(size, 10, 64); err != nil {
			return 0, 0, 0, fmt.Errorf("malformed Content-Range %q: %w", header, err)
		}
	}
	return start, end, total, nil
}
