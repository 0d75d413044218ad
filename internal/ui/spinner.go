package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// Spinner is a blocking terminal spinner for the two waits in a duel's life:
// reaching the server and sitting in the matchmaking queue. UpdateMessage may
// be called from another goroutine while the spinner runs.
type Spinner struct {
	frames   []string
	interval time.Duration

	mu      sync.Mutex
	message string
	stopped bool
	done    chan struct{}
}

// NewConnectionSpinner animates a network connection attempt.
func NewConnectionSpinner(message string) *Spinner {
	return &Spinner{
		frames:   spinner.Globe.Frames,
		interval: 180 * time.Millisecond,
		message:  message,
		done:     make(chan struct{}),
	}
}

// NewWaitingSpinner animates waiting on the matchmaking queue.
func NewWaitingSpinner(message string) *Spinner {
	return &Spinner{
		frames:   spinner.Points.Frames,
		interval: 100 * time.Millisecond,
		message:  message,
		done:     make(chan struct{}),
	}
}

func (s *Spinner) Start() {
	go func() {
		i := 0
		for {
			select {
			case <-s.done:
				return
			default:
				frame := SpinnerStyle.Render(s.frames[i%len(s.frames)])
				fmt.Printf("\r%s %s", frame, s.current())
				i++
				time.Sleep(s.interval)
			}
		}
	}()
}

// Stop halts the animation and clears the line. Idempotent.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.done)
	fmt.Print("\r\033[K")
}

// Success stops the spinner and leaves a checkmarked line behind.
func (s *Spinner) Success(message string) {
	s.Stop()
	fmt.Printf("%s %s\n", SuccessStyle.Render(IconSuccess), message)
}

// Error stops the spinner and leaves a failure line behind.
func (s *Spinner) Error(message string) {
	s.Stop()
	fmt.Printf("%s %s\n", ErrorStyle.Render(IconError), message)
}

// UpdateMessage swaps the text shown next to the spinner.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

func (s *Spinner) current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}
