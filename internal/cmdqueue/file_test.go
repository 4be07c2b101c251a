package cmdqueue

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBatch() []Command {
	return []Command{
		SetLinkStatus{A: "h3", B: "s2"},
		DeleteLink{Intf: "s2-eth1"},
		RunShell{Text: "echo done"},
	}
}

func drainAll(t *testing.T, q Consumer) []Entry {
	t.Helper()
	var got []Entry
	_, err := q.Drain(context.Background(), func(e Entry) { got = append(got, e) })
	require.NoError(t, err)
	return got
}

func TestFileQueueModes(t *testing.T) {
	for _, mode := range []Mode{ModeAtomic, ModeAppend} {
		t.Run(string(mode), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "mncmd")
			q := NewFileQueue(path, mode)

			require.NoError(t, q.EnqueueBatch(context.Background(), sampleBatch()))

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, "py link-status h3 s2 down\npy del-link s2-eth1\necho done\n", string(raw))

			got := drainAll(t, q)
			require.Len(t, got, 3)
			for i, e := range got {
				assert.Equal(t, i, e.Index)
				assert.NoError(t, e.Err)
				assert.Equal(t, sampleBatch()[i], e.Command)
			}

			_, err = os.Stat(path)
			assert.True(t, os.IsNotExist(err), "file should be removed after drain")
		})
	}
}

func TestFileQueueReplacesPendingBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mncmd")
	q := NewFileQueue(path, ModeAppend)
	ctx := context.Background()

	require.NoError(t, q.EnqueueBatch(ctx, sampleBatch()))
	require.NoError(t, q.EnqueueBatch(ctx, []Command{RunShell{Text: "true"}}))

	got := drainAll(t, q)
	require.Len(t, got, 1)
	assert.Equal(t, "true", got[0].Text)
}

func TestFileQueueMissingFileIsEmpty(t *testing.T) {
	q := NewFileQueue(filepath.Join(t.TempDir(), "absent"), ModeAtomic)

	n, err := q.Drain(context.Background(), func(Entry) { t.Fatal("unexpected entry") })
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFileQueueFileExistsUntilAllLinesAttempted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mncmd")
	q := NewFileQueue(path, ModeAtomic)
	require.NoError(t, q.EnqueueBatch(context.Background(), sampleBatch()))

	var order []string
	_, err := q.Drain(context.Background(), func(e Entry) {
		_, statErr := os.Stat(path)
		assert.NoError(t, statErr, "file removed before line %d ran", e.Index)
		order = append(order, e.Text)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"py link-status h3 s2 down", "py del-link s2-eth1", "echo done"}, order)
}

func TestFileQueueCancelMidBatchRunsEachLineOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mncmd")
	q := NewFileQueue(path, ModeAtomic)
	require.NoError(t, q.EnqueueBatch(context.Background(), sampleBatch()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ran []string
	run := func(e Entry) {
		ran = append(ran, e.Text)
		if e.Index == 1 {
			cancel()
		}
	}

	n, err := q.Drain(ctx, run)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = q.Drain(context.Background(), run)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []string{"py link-status h3 s2 down", "py del-link s2-eth1", "echo done"}, ran)
}

func TestFileQueueCancelledBeforeReadKeepsBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mncmd")
	q := NewFileQueue(path, ModeAtomic)
	require.NoError(t, q.EnqueueBatch(context.Background(), sampleBatch()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := q.Drain(ctx, func(Entry) { t.Fatal("nothing should run") })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)

	assert.Len(t, drainAll(t, q), 3)
}

func TestFileQueueOversizedLineIsDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mncmd")
	long := "echo " + strings.Repeat("x", MaxLineBytes+1)
	require.NoError(t, os.WriteFile(path, []byte("echo first\n"+long+"\n"), 0o644))
	q := NewFileQueue(path, ModeAtomic)

	n, err := q.Drain(context.Background(), func(Entry) { t.Fatal("nothing should run") })
	require.Error(t, err)
	assert.Zero(t, n)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "unreadable batch should be removed")

	require.NoError(t, q.EnqueueBatch(context.Background(), sampleBatch()))
	assert.Len(t, drainAll(t, q), 3)
}

func TestFileQueueBadLinesStillDelivered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mncmd")
	require.NoError(t, os.WriteFile(path, []byte("py bogus x\n\n  \necho ok\n"), 0o644))

	got := drainAll(t, NewFileQueue(path, ModeAtomic))
	require.Len(t, got, 2)
	assert.ErrorIs(t, got[0].Err, ErrUnknownOp)
	assert.Nil(t, got[0].Command)
	assert.Equal(t, RunShell{Text: "echo ok"}, got[1].Command)
}

func TestAppendModeExposesPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mncmd")
	q := NewFileQueue(path, ModeAppend)

	// A canceled context stops after nothing has been written.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, q.EnqueueBatch(ctx, sampleBatch()), context.Canceled)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// A consumer reading between appends sees only the lines written so far.
	require.NoError(t, q.writeAppend(context.Background(), []string{"echo one"}))
	got := drainAll(t, q)
	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0].Text, "echo"))
}

func TestAtomicModeLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	q := NewFileQueue(filepath.Join(dir, "mncmd"), ModeAtomic)
	require.NoError(t, q.EnqueueBatch(context.Background(), sampleBatch()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "mncmd", entries[0].Name())
}

func TestEnqueueRejectsBadBatchWithoutWriting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mncmd")
	q := NewFileQueue(path, ModeAppend)

	err := q.EnqueueBatch(context.Background(), []Command{RunShell{Text: "ok"}, DeleteLink{}})
	require.ErrorIs(t, err, ErrMalformed)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAtomic, m)

	m, err = ParseMode("Append")
	require.NoError(t, err)
	assert.Equal(t, ModeAppend, m)

	_, err = ParseMode("mmap")
	assert.Error(t, err)
}
