package control

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
)

// Stdin is a Trigger driven by line input: every line (usually an empty
// Enter press) toggles between press and release. It is the fallback for
// terminals where a global hotkey cannot be registered.
type Stdin struct {
	r io.Reader
}

// NewStdin returns a Trigger reading lines from r. If r is an io.Closer, Run
// closes it on return, so a Stdin can run only once.
func NewStdin(r io.Reader) *Stdin {
	return &Stdin{r: r}
}

// Run toggles on every line until ctx is cancelled or r ends. A recording
// still open at end of input is released.
//
// The line reader blocks in Read. Closing r unblocks it; a reader that is
// not an io.Closer keeps its goroutine parked until the next line or EOF.
func (s *Stdin) Run(ctx context.Context, edges chan<- Edge) error {
	if c, ok := s.r.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				slog.Debug("close line reader", "err", err)
			}
		}()
	}

	lines := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(s.r)
		for sc.Scan() {
			select {
			case lines <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	pressed := false
	slog.Info("press Enter to start and stop recording")
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if pressed {
				Send(ctx, edges, EdgeRelease)
			}
			if err != nil {
				return fmt.Errorf("control: read stdin: %w", err)
			}
			return nil
		case <-lines:
			e := EdgePress
			if pressed {
				e = EdgeRelease
			}
			if !Send(ctx, edges, e) {
				return nil
			}
			pressed = !pressed
		}
	}
}

var _ Trigger = (*Stdin)(nil)
