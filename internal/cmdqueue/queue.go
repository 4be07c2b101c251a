package cmdqueue

import (
	"context"
	"errors"
)

// ErrFull is returned when a bounded queue already holds its pending batches.
var ErrFull = errors.New("cmdqueue: queue full")

// Entry is one line of a drained batch. Err is set when the line could not
// be parsed; Command is nil in that case.
type Entry struct {
	Index   int
	Text    string
	Command Command
	Err     error
}

// Producer accepts whole batches.
type Producer interface {
	EnqueueBatch(ctx context.Context, cmds []Command) error
}

// Consumer hands every line of the pending batch to fn, in order, and then
// removes the batch. It returns the number of lines handed out; zero with a
// nil error means nothing was pending.
type Consumer interface {
	Drain(ctx context.Context, fn func(Entry)) (int, error)
}

func entryFor(i int, text string) Entry {
	cmd, err := Parse(text)
	return Entry{Index: i, Text: text, Command: cmd, Err: err}
}
