package scheduler

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Progress is an immutable snapshot of one attempt's transfer. Update returns
// a new snapshot; speed is resampled at most once per second and the ETA is
// derived from the latest speed sample.
type Progress struct {
	downloaded int64
	total      int64 // -1 when the server sent no length

	speed    float64
	hasSpeed bool
	eta      time.Duration
	hasETA   bool

	start           time.Time
	lastSample      time.Time
	lastSampleBytes int64
}

// NewProgress starts tracking an attempt. A negative total means unknown.
func NewProgress(total int64) Progress {
	return newProgressAt(total, time.Now())
}

func newProgressAt(total int64, now time.Time) Progress {
	if total < 0 {
		total = -1
	}
	return Progress{
		total:      total,
		start:      now,
		lastSample: now,
	}
}

// Update records the cumulative byte count for the attempt.
func (p Progress) Update(downloaded int64) Progress {
	return p.advance(downloaded, time.Now())
}

func (p Progress) advance(downloaded int64, now time.Time) Progress {
	p.downloaded = downloaded
	if elapsed := now.Sub(p.lastSample); elapsed >= speedWindow {
		p.speed = float64(downloaded-p.lastSampleBytes) / elapsed.Seconds()
		p.hasSpeed = true
		p.lastSample = now
		p.lastSampleBytes = downloaded
	}
	p.hasETA = false
	p.eta = 0
	if p.hasSpeed && p.speed > 0 && p.total >= 0 {
		remaining := max(p.total-downloaded, 0)
		p.eta = time.Duration(float64(remaining) / p.speed * float64(time.Second))
		p.hasETA = true
	}
	return p
}

func (p Progress) BytesDownloaded() int64 {
	return p.downloaded
}

func (p Progress) TotalBytes() (int64, bool) {
	return p.total, p.total >= 0
}

// Percent is 0 for a declared length of zero.
func (p Progress) Percent() (float64, bool) {
	if p.total < 0 {
		return 0, false
	}
	if p.total == 0 {
		return 0, true
	}
	return float64(p.downloaded) / float64(p.total) * 100, true
}

// Speed is in bytes per second.
func (p Progress) Speed() (float64, bool) {
	return p.speed, p.hasSpeed
}

func (p Progress) ETA() (time.Duration, bool) {
	return p.eta, p.hasETA
}

func (p Progress) Elapsed() time.Duration {
	if p.start.IsZero() {
		return 0
	}
	return time.Since(p.start)
}

func (p Progress) String() string {
	total := "unknown"
	if t, ok := p.TotalBytes(); ok {
		total = humanize.IBytes(uint64(t))
	}
	speed := "N/A"
	if s, ok := p.Speed(); ok {
		speed = humanize.IBytes(uint64(s)) + "/s"
	}
	eta := "N/A"
	if d, ok := p.ETA(); ok {
		eta = d.Round(time.Second).String()
	}
	percent, _ := p.Percent()
	return fmt.Sprintf("downloaded %s of %s, speed %s, eta %s, elapsed %s, %.2f%%",
		humanize.IBytes(uint64(p.downloaded)), total, speed, eta, p.Elapsed().Round(time.Millisecond), percent)
}
