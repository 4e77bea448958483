package httpdl

import (
	"fmt"
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tanq16/segdl/internal/utils"
)

var unsafeNameRegex = regexp.MustCompile(`[\x00-\x1f<>:"|?*]+`)

// ResolveDestination picks a free path in dir for rawURL. The name comes
// from the probed Content-Disposition header, then the last path segment
// of rawURL, then that of the redirect target, then download_<unix>. Collisions get a _N suffix before the extension.
// taken defaults to checking the filesystem; the check and the later file
// creation are not atomic.
func ResolveDestination(dir, rawURL string, info FileInfo, now time.Time, taken func(string) bool) string {
	if taken == nil {
		taken = utils.PathExists
	}
	name := FileNameFromDisposition(info.Disposition)
	if name == "" {
		name = fileNameFromURL(rawURL)
	}
	if name == "" && info.FinalURL != "" {
		name = fileNameFromURL(info.FinalURL)
	}
	if name == "" {
		name = fmt.Sprintf("download_%d", now.Unix())
	}
	candidate := filepath.Join(dir, name)
	if taken(candidate) {
		candidate = utils.RenewOutputPath(candidate, taken)
	}
	return candidate
}

// FileNameFromDisposition extracts a safe base name from a Content-Disposition value.
func FileNameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(header); err == nil {
		// ParseMediaType stores a decoded filename* under "filename",
		// replacing any plain filename parameter.
		return sanitizeFileName(params["filename"])
	}
	// malformed header, take whatever follows filename=
	if idx := strings.LastIndex(header, "filename="); idx >= 0 {
		fn := strings.Trim(strings.TrimSpace(header[idx+len("filename="):]), `"'`)
		fn, _, _ = strings.Cut(fn, ";")
		return sanitizeFileName(strings.Trim(fn, `"'`))
	}
	return ""
}

func fileNameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return sanitizeFileName(path.Base(parsed.Path))
}

func sanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	name = unsafeNameRegex.ReplaceAllString(name, "_")
	switch name {
	case "", ".", "..", "/":
		return ""
	}
	return name
}
