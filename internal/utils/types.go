package utils

import (
	"net/http"
	"time"
)

type HTTPClientConfig struct {
	Timeout        time.Duration // time to wait for response headers
	KATimeout      time.Duration
	ProxyURL       string
	ProxyUsername  string
	ProxyPassword  string
	UserAgent      string
	Headers        map[string]string
	BearerToken    string
	HighThreadMode bool // advanced socket options for high concurrency
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DownloadEntry is one line of a batch file.
type DownloadEntry struct {
	URL         string `yaml:"link"`
	OutputDir   string `yaml:"op,omitempty"`
	Connections int    `yaml:"connections,omitempty"`
}
