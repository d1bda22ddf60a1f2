package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Braille frames for the line spinner used by non-interactive commands.
var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

const spinnerInterval = 80 * time.Millisecond

// Spinner animates a single status line on a writer (normally stderr) while
// a command waits, for example while collecting samples before an export.
type Spinner struct {
	mu       sync.Mutex
	w        io.Writer
	label    string
	frame    int
	start    time.Time
	lastLen  int
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewSpinner creates a spinner that writes to w.
func NewSpinner(w io.Writer, label string) *Spinner {
	return &Spinner{w: w, label: label}
}

// Start begins the animation. Calling Start on a running spinner is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.start = time.Now()
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	s.renderLocked()
	s.mu.Unlock()

	go s.animate()
}

// SetLabel replaces the label, e.g. to show progress counts.
func (s *Spinner) SetLabel(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.label = label
}

// Success stops the spinner and prints a final green line.
func (s *Spinner) Success(msg string) {
	s.finish(SuccessStyle().Render(SymbolSuccess), msg)
}

// Fail stops the spinner and prints a final red line.
func (s *Spinner) Fail(msg string) {
	s.finish(ErrorStyle().Render(SymbolFail), msg)
}

func (s *Spinner) finish(symbol, msg string) {
	s.stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	elapsed := time.Duration(0)
	if !s.start.IsZero() {
		elapsed = time.Since(s.start)
	}
	fmt.Fprintf(s.w, "%s %s %s\n", symbol, msg, MutedStyle().Render(FormatDuration(elapsed)))
}

func (s *Spinner) stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()
	<-s.doneChan
}

func (s *Spinner) animate() {
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()
	defer close(s.doneChan)

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.frame = (s.frame + 1) % len(spinnerFrames)
			s.renderLocked()
			s.mu.Unlock()
		}
	}
}

func (s *Spinner) renderLocked() {
	s.clearLocked()
	line := lipgloss.NewStyle().Foreground(ColorSecondary).Render(spinnerFrames[s.frame]) + " " + s.label + "..."
	fmt.Fprint(s.w, line)
	s.lastLen = lipgloss.Width(line)
}

func (s *Spinner) clearLocked() {
	if s.lastLen > 0 {
		fmt.Fprint(s.w, "\r"+strings.Repeat(" ", s.lastLen)+"\r")
		s.lastLen = 0
	}
}

// FormatDuration formats a duration for display (e.g., "0.05s", "1.2s").
func FormatDuration(d time.Duration) string {
	secs := d.Seconds()
	if secs < 0.1 {
		return fmt.Sprintf("%.2fs", secs)
	}
	return fmt.Sprintf("%.1fs", secs)
}
