package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

func GetRandomUserAgent() string {
	return userAgents[time.Now().UnixNano()%int64(len(userAgents))]
}

// PathExists reports whether anything already lives at path.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// RenewOutputPath appends _1, _2, ... before the extension until taken
// reports the path as free. Not atomic against concurrent file creation.
func RenewOutputPath(outputPath string, taken func(string) bool) string {
	if taken == nil {
		taken = PathExists
	}
	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	if name == "" {
		name, ext = base, ""
	}
	index := 1
	for {
		outputPath = filepath.Join(dir, fmt.Sprintf("%s_%d%s", name, index, ext))
		if !taken(outputPath) {
			return outputPath
		}
		index++
	}
}

func ParseHeaderArgs(headers []string) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			result[key] = value
		}
	}
	return result
}

func FormatBytes(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}

func FormatSpeed(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return "-"
	}
	return FormatBytes(int64(bytesPerSec)) + "/s"
}

// FormatETA renders MM:SS or HH:MM:SS; unknown estimates render as --:--.
func FormatETA(eta time.Duration, known bool) string {
	if !known || eta < 0 {
		return "--:--"
	}
	secs := int64(eta.Round(time.Second) / time.Second)
	h, m, s := secs/3600, (secs%3600)/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// PartFiles lists the segment files (<output>.partN) lying next to outputPath.
func PartFiles(outputPath string) ([]string, error) {
	dir := filepath.Dir(outputPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	prefix := filepath.Base(outputPath) + ".part"
	var parts []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		if m := ChunkIDRegex.FindStringSubmatch(entry.Name()); m != nil && entry.Name() == prefix+m[1] {
			parts = append(parts, filepath.Join(dir, entry.Name()))
		}
	}
	return parts, nil
}

// CleanParts removes leftover segment files for outputPath and returns how many were deleted.
func CleanParts(outputPath string) (int, error) {
	parts, err := PartFiles(outputPath)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, part := range parts {
		if err := os.Remove(part); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
