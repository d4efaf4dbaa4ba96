package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tanq16/dlq/internal/scheduler"
)

type entry struct {
	index   int
	label   string
	status  scheduler.Status
	err     error
	done    bool
	start   time.Time
	updated time.Time
	size    int64
}

type ErrorReport struct {
	Label string
	Error error
	Time  time.Time
}

// Manager renders a live status board for tracked downloads and a summary
// once they are all done.
type Manager struct {
	mutex       sync.RWMutex
	out         io.Writer
	live        bool
	entries     map[uuid.UUID]*entry
	count       int
	numLines    int
	errors      []ErrorReport
	displayTick time.Duration

	tracked   sync.WaitGroup
	displayWg sync.WaitGroup
	doneCh    chan struct{}
	finished  chan struct{}
}

// NewManager writes to out. With live false nothing is drawn until
// ShowSummary.
func NewManager(out io.Writer, live bool) *Manager {
	return &Manager{
		out:         out,
		live:        live,
		entries:     make(map[uuid.UUID]*entry),
		displayTick: 300 * time.Millisecond,
		doneCh:      make(chan struct{}),
		finished:    make(chan struct{}, 1),
	}
}

func (m *Manager) register(id uuid.UUID, label string) *entry {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.count++
	e := &entry{
		index:   m.count,
		label:   label,
		status:  scheduler.Status{State: scheduler.StateQueued},
		start:   time.Now(),
		updated: time.Now(),
	}
	m.entries[id] = e
	return e
}

// Track follows h until it finishes. The downloaded file is closed; the
// board only keeps its size.
func (m *Manager) Track(ctx context.Context, h *scheduler.Handle) {
	id := h.ID()
	m.register(id, h.Destination())
	m.tracked.Add(1)
	go func() {
		defer m.tracked.Done()
		for {
			s, err := h.WaitForStatusUpdate(ctx)
			if err != nil {
				break
			}
			m.update(id, s)
		}
		file, err := h.Wait(ctx)
		var size int64
		if file != nil {
			if info, serr := file.Stat(); serr == nil {
				size = info.Size()
			}
			file.Close()
		}
		m.finish(id, h.Status(), size, err)
	}()
}

func (m *Manager) update(id uuid.UUID, s scheduler.Status) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if e, ok := m.entries[id]; ok {
		e.status = s
		e.updated = time.Now()
	}
}

func (m *Manager) finish(id uuid.UUID, s scheduler.Status, size int64, err error) {
	m.mutex.Lock()
	if e, ok := m.entries[id]; ok {
		e.status = s
		e.done = true
		e.err = err
		e.size = size
		e.updated = time.Now()
		if err != nil {
			m.errors = append(m.errors, ErrorReport{Label: e.label, Error: err, Time: time.Now()})
		}
	}
	m.mutex.Unlock()
	select {
	case m.finished <- struct{}{}:
	default:
	}
}

// ReportError records a download that never made it into the queue.
func (m *Manager) ReportError(label string, err error) {
	id := uuid.New()
	m.register(id, label)
	m.finish(id, scheduler.Status{State: scheduler.StateFailed}, 0, err)
}

// Finished fires after a tracked download completes.
func (m *Manager) Finished() <-chan struct{} {
	return m.finished
}

// Wait blocks until every tracked download has finished.
func (m *Manager) Wait() {
	m.tracked.Wait()
}

// Failures counts downloads that did not complete.
func (m *Manager) Failures() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.errors)
}

func (m *Manager) sorted() []*entry {
	all := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		all = append(all, e)
	}
	slices.SortFunc(all, func(a, b *entry) int { return a.index - b.index })
	return all
}

func statusIndicator(s scheduler.State) string {
	switch s {
	case scheduler.StateCompleted:
		return successStyle.Render(StyleSymbols["pass"])
	case scheduler.StateFailed:
		return errorStyle.Render(StyleSymbols["fail"])
	case scheduler.StateRetrying, scheduler.StateCancelled:
		return warningStyle.Render(StyleSymbols["warning"])
	case scheduler.StateQueued:
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		return infoStyle.Render(StyleSymbols["bullet"])
	}
}

func (e *entry) lines() []string {
	elapsed := time.Since(e.start).Round(time.Second)
	if e.done {
		elapsed = e.updated.Sub(e.start).Round(time.Second)
	}
	head := fmt.Sprintf("  %s %s ", statusIndicator(e.status.State), debugStyle.Render(elapsed.String()))
	switch e.status.State {
	case scheduler.StateQueued:
		return []string{head + pendingStyle.Render("Waiting... "+e.label)}
	case scheduler.StateRetrying:
		return []string{head + warningStyle.Render("Retrying "+e.label)}
	case scheduler.StateInProgress:
		return []string{
			head + pendingStyle.Render("Downloading "+e.label),
			"      " + streamStyle.Render(describeProgress(e.status.Progress)),
		}
	case scheduler.StateCompleted:
		return []string{head + successStyle.Render(fmt.Sprintf("Completed %s (%s)", e.label, humanizeSize(e.size)))}
	case scheduler.StateCancelled:
		return []string{head + warningStyle.Render("Cancelled "+e.label)}
	default:
		return []string{head + errorStyle.Render("Failed "+e.label)}
	}
}

// render draws the board, limited to height lines. Older completed entries
// are summarised first when space runs out.
func (m *Manager) render(height int) []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	var active, completed []*entry
	for _, e := range m.sorted() {
		if e.done {
			completed = append(completed, e)
		} else {
			active = append(active, e)
		}
	}
	var out []string
	for _, e := range active {
		out = append(out, e.lines()...)
	}
	room := height - len(out)
	if len(completed) > room && room > 0 {
		hidden := len(completed) - room + 1
		out = append(out, infoStyle.Render(fmt.Sprintf("  %d downloads finished ...", hidden)))
		completed = completed[hidden:]
	}
	for _, e := range completed {
		out = append(out, e.lines()...)
	}
	if len(out) > height {
		out = out[:height]
	}
	return out
}

func (m *Manager) updateDisplay() {
	lines := m.render(getTerminalHeight() - 3)
	var b strings.Builder
	if m.numLines > 0 {
		fmt.Fprintf(&b, "\033[%dA\033[J", m.numLines)
	}
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if _, err := io.WriteString(m.out, b.String()); err != nil {
		log.Debug().Str("op", "output/manager").Err(err).Msg("cannot draw status board")
	}
	m.numLines = len(lines)
}

func (m *Manager) StartDisplay() {
	if !m.live {
		return
	}
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.updateDisplay()
			case <-m.doneCh:
				m.updateDisplay()
				return
			}
		}
	}()
}

func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayWg.Wait()
}

func (m *Manager) ShowSummary() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	var success, cancelled int
	for _, e := range m.entries {
		switch e.status.State {
		case scheduler.StateCompleted:
			success++
		case scheduler.StateCancelled:
			cancelled++
		}
	}
	total := len(m.entries)
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, "  "+success2Style.Render(fmt.Sprintf("Completed %d of %d", success, total)))
	if cancelled > 0 {
		fmt.Fprintln(m.out, "  "+warningStyle.Render(fmt.Sprintf("Cancelled %d of %d", cancelled, total)))
	}
	if failed := len(m.errors) - cancelled; failed > 0 {
		fmt.Fprintln(m.out, "  "+errorStyle.Render(fmt.Sprintf("Failed %d of %d", failed, total)))
	}
	if len(m.errors) > 0 {
		fmt.Fprintln(m.out)
		fmt.Fprintln(m.out, "  "+errorStyle.Bold(true).Render("Errors:"))
		for i, r := range m.errors {
			fmt.Fprintf(m.out, "    %s %s %s\n",
				errorStyle.Render(fmt.Sprintf("%d.", i+1)),
				debugStyle.Render(fmt.Sprintf("[%s]", r.Time.Format(time.TimeOnly))),
				errorStyle.Render(r.Label))
			fmt.Fprintf(m.out, "      %s\n", errorStyle.Render(describeError(r.Error)))
		}
	}
	fmt.Fprintln(m.out)
}

func describeError(err error) string {
	if errors.Is(err, scheduler.ErrCancelled) {
		return "cancelled"
	}
	return err.Error()
}
