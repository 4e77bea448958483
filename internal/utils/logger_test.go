package utils

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"
)

func TestSetLogOutputPlainComponentPrefix(t *testing.T) {
	saved := log.Logger
	defer func() { log.Logger = saved }()

	var buf bytes.Buffer
	SetLogOutput(&buf)
	logger := GetLogger("scheduler")
	logger.Info().Str("job", "abc").Msg("Job submitted")

	line := buf.String()
	if strings.Contains(line, "\x1b[") {
		t.Errorf("file output carries color codes: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Errorf("component rendered as a field: %q", line)
	}
	idx := strings.Index(line, "scheduler")
	if idx < 0 || idx > strings.Index(line, "Job submitted") {
		t.Errorf("component should precede the message: %q", line)
	}
	if !strings.Contains(line, "job=abc") {
		t.Errorf("missing job field: %q", line)
	}
}
