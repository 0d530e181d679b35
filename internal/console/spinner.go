package console

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// Spinner animates a progress line on w until Stop is called.
type Spinner struct {
	w     io.Writer
	label string
	style spinner.Spinner
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// StartSpinner begins animating label. It draws nothing when enabled is
// false, which callers use when stderr is not a terminal.
func StartSpinner(w io.Writer, label string, enabled bool) *Spinner {
	s := &Spinner{w: w, label: label, style: spinner.MiniDot, done: make(chan struct{})}
	if !enabled {
		close(s.done)
		return s
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *Spinner) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.style.FPS)
	defer ticker.Stop()

	i := 0
	for {
		fmt.Fprintf(s.w, "\r%s %s", s.style.Frames[i], s.label)
		i = (i + 1) % len(s.style.Frames)
		select {
		case <-s.done:
			fmt.Fprint(s.w, "\r\033[K") // clear line
			return
		case <-ticker.C:
		}
	}
}

// Stop ends the animation and clears the line. Safe to call twice.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		select {
		case <-s.done:
		default:
			close(s.done)
		}
	})
	s.wg.Wait()
}
