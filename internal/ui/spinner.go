package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// SimpleSpinner is a blocking spinner for CLI wait states (connecting,
// waiting for a peer, waiting for accept/reject).
type SimpleSpinner struct {
	message  string
	spinner  spinner.Spinner
	interval time.Duration
	done     chan struct{}
	stopped  bool
}

func NewSimpleSpinner(message string) *SimpleSpinner {
	return &SimpleSpinner{message: message, spinner: spinner.Dot, interval: 80 * time.Millisecond, done: make(chan struct{})}
}

func NewConnectionSpinner(message string) *SimpleSpinner {
	return &SimpleSpinner{message: message, spinner: spinner.Globe, interval: 180 * time.Millisecond, done: make(chan struct{})}
}

func NewWaitingSpinner(message string) *SimpleSpinner {
	return &SimpleSpinner{message: message, spinner: spinner.Points, interval: 100 * time.Millisecond, done: make(chan struct{})}
}

func (s *SimpleSpinner) Start() {
	go func() {
		frames := s.spinner.Frames
		i := 0
		for {
			select {
			case <-s.done:
				return
			default:
				frame := SpinnerStyle.Render(frames[i%len(frames)])
				fmt.Printf("\r%s %s", frame, s.message)
				i++
				time.Sleep(s.interval)
			}
		}
	}()
}

func (s *SimpleSpinner) Stop() {
	if !s.stopped {
		s.stopped = true
		close(s.done)
		fmt.Print("\r\033[K")
	}
}

// RunSpinner starts a default spinner and returns its stop function.
func RunSpinner(message string) func() {
	sp := NewSimpleSpinner(message)
	sp.Start()
	return sp.Stop
}

// RunConnectionSpinner starts a connection spinner and returns its stop
// function.
func RunConnectionSpinner(message string) func() {
	sp := NewConnectionSpinner(message)
	sp.Start()
	return sp.Stop
}

// RunWaitingSpinner starts a waiting spinner and returns its stop
// function.
func RunWaitingSpinner(message string) func() {
	sp := NewWaitingSpinner(message)
	sp.Start()
	return sp.Stop
}
