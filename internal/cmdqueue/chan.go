package cmdqueue

import (
	"context"
)

// ChanQueue is a bounded in-process queue of batches, for running the
// controller and executor in one process.
type ChanQueue struct {
	batches chan []string
}

func NewChanQueue(capacity int) *ChanQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &ChanQueue{batches: make(chan []string, capacity)}
}

// EnqueueBatch never blocks; it returns ErrFull when every slot is taken.
func (q *ChanQueue) EnqueueBatch(ctx context.Context, cmds []Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lines, err := EncodeAll(cmds)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	select {
	case q.batches <- lines:
		return nil
	default:
		return ErrFull
	}
}

// Drain takes at most one pending batch.
func (q *ChanQueue) Drain(ctx context.Context, fn func(Entry)) (int, error) {
	var lines []string
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case lines = <-q.batches:
	default:
		return 0, nil
	}
	for i, line := range lines {
		fn(entryFor(i, line))
	}
	return len(lines), nil
}

func (q *ChanQueue) Len() int { return len(q.batches) }

var (
	_ Producer = (*ChanQueue)(nil)
	_ Consumer = (*ChanQueue)(nil)
)
