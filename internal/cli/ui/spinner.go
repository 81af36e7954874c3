package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a status line until stopped
type Spinner struct {
	w        io.Writer
	message  string
	interval time.Duration
	noColor  bool

	mu      sync.Mutex
	done    chan struct{}
	stopped chan struct{}
}

// NewSpinner creates a spinner; a zero interval means 100ms
func NewSpinner(w io.Writer, message string, interval time.Duration, noColor bool) *Spinner {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Spinner{w: w, message: message, interval: interval, noColor: noColor}
}

// Start begins the animation; a running spinner is left alone
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.animate(s.done, s.stopped)
}

// Stop ends the animation and clears the line
func (s *Spinner) Stop() {
	s.mu.Lock()
	done, stopped := s.done, s.stopped
	s.done, s.stopped = nil, nil
	s.mu.Unlock()

	if done == nil {
		return
	}
	close(done)
	<-stopped
	fmt.Fprint(s.w, "\r\033[K")
}

// Succeed stops the spinner and prints a success line
func (s *Spinner) Succeed(message string) {
	s.Stop()
	WriteSuccess(s.w, message, s.noColor)
}

// Fail stops the spinner and prints a failure line
func (s *Spinner) Fail(message string) {
	s.Stop()
	red := color.New(color.FgRed, color.Bold)
	if s.noColor {
		red.DisableColor()
	}
	red.Fprintf(s.w, "❌ %s\n", message)
}

func (s *Spinner) animate(done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	cyan := color.New(color.FgCyan)
	if s.noColor {
		cyan.DisableColor()
	}
	for i := 0; ; i++ {
		select {
		case <-done:
			return
		case <-ticker.C:
			cyan.Fprintf(s.w, "\r%s %s", spinnerFrames[i%len(spinnerFrames)], s.message)
		}
	}
}

// WithSpinner runs fn behind a spinner showing message
func WithSpinner(w io.Writer, message string, noColor bool, fn func() error) error {
	s := NewSpinner(w, message, 0, noColor)
	s.Start()
	if err := fn(); err != nil {
		s.Fail(message + " failed")
		return err
	}
	s.Succeed(message)
	return nil
}
