package utils

import (
	"errors"
	"regexp"
	"time"
)

const (
	DefaultBufferSize     = 64 * 1024 // read increment for fetchers
	SocketBufferSize      = 1024 * 1024
	DefaultConnections    = 8
	MaxConnections        = 16
	DefaultProbeTimeout   = 15 * time.Second
	DefaultSampleInterval = 500 * time.Millisecond
	ToolUserAgent         = "segdl/1.0"
)

var ErrRangeRequestsNotSupported = errors.New("range requests are not supported")
var ChunkIDRegex = regexp.MustCompile(`\.part(\d+)$`)

// used when the user agent is set to "randomize"
var userAgents = []string{
	"Mozilla/5.0 (X11; Linux x86_64; rv:136.0) Gecko/20100101 Firefox/136.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.3 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36 Edg/132.0.0.0",
	"curl/8.5.0",
	"Wget/1.21.4",
}
