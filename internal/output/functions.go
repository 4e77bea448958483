package output

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/tanq16/segdl/internal/job"
	"github.com/tanq16/segdl/internal/utils"
)

// PrintProgressBar draws current/total as a fixed-width bar. An unknown
// total draws an empty bar.
func PrintProgressBar(current, total int64, width int) string {
	if width <= 0 {
		width = 30
	}
	percent := 0.0
	if total > 0 {
		percent = float64(max(0, min(current, total))) / float64(total)
	}
	filled := max(0, min(int(percent*float64(width)), width))
	bar := StyleSymbols["bullet"] + strings.Repeat(StyleSymbols["hline"], filled) + strings.Repeat(" ", width-filled) + StyleSymbols["bullet"]
	if total <= 0 {
		return debugStyle.Render(bar + " ")
	}
	return debugStyle.Render(fmt.Sprintf("%s %.1f%% ", bar, percent*100))
}

// progressLine renders bytes, speed and ETA for one job.
func progressLine(info *jobOutput) string {
	size := utils.FormatBytes(info.downloaded)
	if info.total > 0 {
		size += " / " + utils.FormatBytes(info.total)
	}
	parts := []string{
		PrintProgressBar(info.downloaded, info.total, 30),
		debugStyle.Render(size),
		debugStyle.Render(utils.FormatSpeed(info.speed)),
		debugStyle.Render("ETA " + utils.FormatETA(info.eta, info.etaKnown)),
	}
	return strings.Join(parts, " "+StyleSymbols["bullet"]+" ")
}

func statusIndicator(status job.Status) string {
	switch status {
	case job.StatusCompleted:
		return successStyle.Render(StyleSymbols["pass"])
	case job.StatusFailed:
		return errorStyle.Render(StyleSymbols["fail"])
	case job.StatusCancelled:
		return warningStyle.Render(StyleSymbols["warning"])
	case job.StatusPaused:
		return warningStyle.Render(StyleSymbols["pause"])
	case job.StatusQueued:
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		return infoStyle.Render(StyleSymbols["arrow"])
	}
}

func statusMessage(info *jobOutput) string {
	switch info.status {
	case job.StatusCompleted:
		return successStyle.Render(fmt.Sprintf("Completed %s (%s)", info.label, utils.FormatBytes(info.downloaded)))
	case job.StatusFailed:
		return errorStyle.Render(fmt.Sprintf("Failed %s", info.label))
	case job.StatusCancelled:
		return warningStyle.Render(fmt.Sprintf("Cancelled %s", info.label))
	case job.StatusPaused:
		return warningStyle.Render(fmt.Sprintf("Paused %s", info.label))
	case job.StatusQueued:
		return pendingStyle.Render(fmt.Sprintf("Waiting %s", info.label))
	default:
		return pendingStyle.Render(fmt.Sprintf("Downloading %s", info.label))
	}
}

func isTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

func getTerminalHeight() int {
	_, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || height <= 0 {
		return 24
	}
	return height
}
