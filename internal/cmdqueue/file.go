package cmdqueue

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Mode selects how FileQueue writes a batch.
type Mode string

const (
	// ModeAtomic writes a temporary file next to the target and renames it
	// into place, so a consumer never sees half a batch.
	ModeAtomic Mode = "atomic"
	// ModeAppend truncates with the first line and appends the rest one
	// open at a time. A consumer polling mid-write can pick up a prefix.
	ModeAppend Mode = "append"
)

// ParseMode validates a mode name. Empty selects ModeAtomic.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAtomic:
		return ModeAtomic, nil
	case ModeAppend:
		return ModeAppend, nil
	default:
		return "", fmt.Errorf("cmdqueue: unknown queue mode %q", s)
	}
}

// MaxLineBytes bounds a single queue line on read.
const MaxLineBytes = 1 << 20

// FileQueue is a single-slot mailbox backed by a plain text file. A new
// batch replaces any batch still pending.
type FileQueue struct {
	mu   sync.Mutex
	path string
	mode Mode
}

func NewFileQueue(path string, mode Mode) *FileQueue {
	if mode == "" {
		mode = ModeAtomic
	}
	return &FileQueue{path: path, mode: mode}
}

func (q *FileQueue) Path() string { return q.path }

func (q *FileQueue) EnqueueBatch(ctx context.Context, cmds []Command) error {
	lines, err := EncodeAll(cmds)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.mode == ModeAppend {
		return q.writeAppend(ctx, lines)
	}
	return q.writeAtomic(ctx, lines)
}

func (q *FileQueue) writeAtomic(ctx context.Context, lines []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, base := filepath.Split(q.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*")
	if err != nil {
		return fmt.Errorf("queue temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			return cleanup(fmt.Errorf("queue write: %w", err))
		}
	}
	if err := w.Flush(); err != nil {
		return cleanup(fmt.Errorf("queue flush: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(fmt.Errorf("queue sync: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("queue close: %w", err)
	}
	if err := os.Rename(tmpName, q.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("queue rename: %w", err)
	}
	return nil
}

func (q *FileQueue) writeAppend(ctx context.Context, lines []string) error {
	for i, line := range lines {
		if err := ctx.Err(); err != nil {
			return err
		}
		flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
		if i == 0 {
			flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		}
		f, err := os.OpenFile(q.path, flags, 0o644)
		if err != nil {
			return fmt.Errorf("queue open: %w", err)
		}
		_, werr := f.WriteString(line + "\n")
		cerr := f.Close()
		if err := errors.Join(werr, cerr); err != nil {
			return fmt.Errorf("queue append line %d: %w", i, err)
		}
	}
	return nil
}

// Drain reads every line of the pending file, hands each non-blank one to fn
// in file order and removes the file afterwards. A missing file is an empty
// batch. Once the file has been read the batch runs to the end regardless of
// ctx, so no line is ever delivered twice. A file that cannot be read back is
// removed and reported.
func (q *FileQueue) Drain(ctx context.Context, fn func(Entry)) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f, err := os.Open(q.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("queue open: %w", err)
	}

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	serr := scanner.Err()
	_ = f.Close()
	if serr != nil {
		// Nothing has run yet; drop the unreadable batch.
		return 0, errors.Join(fmt.Errorf("queue read: %w", serr), q.remove())
	}

	for i, line := range lines {
		fn(entryFor(i, line))
	}
	return len(lines), q.remove()
}

func (q *FileQueue) remove() error {
	if err := os.Remove(q.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("queue remove: %w", err)
	}
	return nil
}

var (
	_ Producer = (*FileQueue)(nil)
	_ Consumer = (*FileQueue)(nil)
)
