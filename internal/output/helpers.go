package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/tanq16/dlq/internal/scheduler"
)

func progressBar(current, total int64, width int) string {
	if width <= 0 {
		width = 30
	}
	if total <= 0 {
		total = 1
	}
	current = max(0, min(current, total))
	percent := float64(current) / float64(total)
	filled := max(0, min(int(percent*float64(width)), width))
	bar := StyleSymbols["bullet"]
	bar += strings.Repeat(StyleSymbols["hline"], filled)
	bar += strings.Repeat(" ", width-filled)
	bar += StyleSymbols["bullet"]
	return fmt.Sprintf("%s %.1f%%", bar, percent*100)
}

// describeProgress renders the stream line for an in-progress download.
func describeProgress(p scheduler.Progress) string {
	var parts []string
	done := humanize.IBytes(uint64(p.BytesDownloaded()))
	if total, ok := p.TotalBytes(); ok {
		parts = append(parts, progressBar(p.BytesDownloaded(), total, 30), done+" / "+humanize.IBytes(uint64(total)))
	} else {
		parts = append(parts, done)
	}
	if speed, ok := p.Speed(); ok {
		parts = append(parts, humanize.IBytes(uint64(speed))+"/s")
	}
	if eta, ok := p.ETA(); ok {
		parts = append(parts, "eta "+eta.Round(time.Second).String())
	}
	return strings.Join(parts, " "+StyleSymbols["bullet"]+" ")
}

func getTerminalHeight() int {
	_, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || height <= 0 {
		return 24
	}
	return height
}

// IsTerminal reports whether stdout can host the live display.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func humanizeSize(n int64) string {
	return humanize.IBytes(uint64(max(n, 0)))
}
