package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/samber/mo"

	"tuber/internal/media"
)

// ErrCanceled is returned by Pending.Wait for a canceled resolution.
var ErrCanceled = errors.New("resolution canceled")

// Completion is the outcome of an asynchronous resolution.
type Completion = mo.Result[*media.MediaInfo]

// Pending is a resolution running in the background.
type Pending struct {
	done   chan Completion
	cancel context.CancelFunc

	mu       sync.Mutex
	canceled bool
	result   *Completion
}

// Done delivers exactly one Completion, unless the resolution is
// canceled, in which case the channel is closed without a value.
func (p *Pending) Done() <-chan Completion { return p.done }

// Cancel aborts the resolution. It is safe to call more than once and
// after completion.
func (p *Pending) Cancel() {
	p.mu.Lock()
	p.canceled = true
	p.mu.Unlock()
	p.cancel()
}

// Wait blocks until the resolution completes or ctx is done. Giving up on
// ctx does not cancel the resolution.
func (p *Pending) Wait(ctx context.Context) (*media.MediaInfo, error) {
	select {
	case c, ok := <-p.done:
		if !ok {
			p.mu.Lock()
			defer p.mu.Unlock()
			if p.result == nil {
				return nil, ErrCanceled
			}
			return p.result.Get()
		}
		return c.Get()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pending) finish(ctx context.Context, info *media.MediaInfo, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.canceled || ctx.Err() != nil {
		close(p.done)
		return
	}
	c := mo.TupleToResult(info, err)
	p.result = &c
	p.done <- c
	close(p.done)
}
