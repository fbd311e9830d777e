package helpers

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

var spinnerFrames = [...]string{"|", "/", "-", "\\"}

const (
	spinnerInterval    = 100 * time.Millisecond
	// elapsed time is shown once an operation runs longer than this
	spinnerShowElapsed = 2 * time.Second
)

// Spinner animates a status line on a terminal while a slow check runs.
type Spinner struct {
	out     io.Writer
	message string

	mu   sync.Mutex
	done chan struct{}
	wg   sync.WaitGroup
}

// NewSpinner creates a spinner that writes to w.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{out: w, message: message}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Start begins the animation. Output that is not a terminal stays untouched.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil || !IsTerminal(s.out) {
		return
	}
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.animate(s.done, time.Now())
}

func (s *Spinner) animate(done <-chan struct{}, started time.Time) {
	defer s.wg.Done()
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()
	for frame := 0; ; frame++ {
		line := spinnerFrames[frame%len(spinnerFrames)] + " " + s.message
		if elapsed := time.Since(started); elapsed >= spinnerShowElapsed {
			line += fmt.Sprintf(" (%ds)", int(elapsed.Seconds()))
		}
		fmt.Fprintf(s.out, "\r%s", line)
		select {
		case <-done:
			fmt.Fprint(s.out, "\r\033[K")
			return
		case <-ticker.C:
		}
	}
}

// Stop ends the animation and clears the line. It is safe to call more than once.
func (s *Spinner) Stop() {
	s.mu.Lock()
	done := s.done
	s.done = nil
	s.mu.Unlock()
	if done == nil {
		return
	}
	close(done)
	s.wg.Wait()
}
