package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestAudit(t *testing.T) (*AuditLog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	a, err := OpenAudit(path)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, path
}

func entry(id string, seq int64, op string) Entry {
	return Entry{
		ID:               id,
		Seq:              seq,
		Op:               op,
		Participants:     int(seq),
		RegistrationOpen: op != "shuffle",
		AssignmentsReady: op == "shuffle",
		CommittedAt:      ts(int(seq)),
	}
}

func TestOpenAudit_Pragmas(t *testing.T) {
	a, _ := openTestAudit(t)

	assert.NoError(t, a.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, a.verifyPragma("synchronous", "1"))
	assert.NoError(t, a.verifyPragma("user_version", "1"))
}

func TestOpenAudit_ReopenIsIdempotent(t *testing.T) {
	a, path := openTestAudit(t)
	ctx := context.Background()
	require.NoError(t, a.Record(ctx, entry("e1", 1, "register")))
	require.NoError(t, a.Close())

	again, err := OpenAudit(path)
	require.NoError(t, err)
	defer again.Close()

	seq, err := again.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
}

func TestAuditLog_RecentNewestFirst(t *testing.T) {
	a, _ := openTestAudit(t)
	ctx := context.Background()

	require.NoError(t, a.Record(ctx, entry("e1", 1, "register")))
	require.NoError(t, a.Record(ctx, entry("e2", 2, "register")))
	require.NoError(t, a.Record(ctx, entry("e3", 3, "shuffle")))

	got, err := a.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, entry("e3", 3, "shuffle"), got[0])
	assert.Equal(t, entry("e2", 2, "register"), got[1])

	all, err := a.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAuditLog_DuplicateIDIgnored(t *testing.T) {
	a, _ := openTestAudit(t)
	ctx := context.Background()

	require.NoError(t, a.Record(ctx, entry("e1", 1, "register")))
	require.NoError(t, a.Record(ctx, entry("e1", 7, "reopen")))

	got, err := a.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "register", got[0].Op)
}

func TestAuditLog_LastSeq(t *testing.T) {
	a, _ := openTestAudit(t)
	ctx := context.Background()

	seq, err := a.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	require.NoError(t, a.Record(ctx, entry("e4", 4, "register")))
	require.NoError(t, a.Record(ctx, entry("e2", 2, "register")))

	seq, err = a.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), seq)
}

func TestAuditLog_RecordsWriterCommits(t *testing.T) {
	a, _ := openTestAudit(t)
	dir := t.TempDir()
	fs := NewFileStore(filepath.Join(dir, "exchange.json"), WithFileLogger(discardLogger()))
	w := NewWriter(fs, WithRecorder(a), WithWriterLogger(discardLogger()))

	require.NoError(t, w.Persist(context.Background(), commitWith("register", 1)))
	require.NoError(t, w.Persist(context.Background(), commitWith("register", 2)))
	w.Close()

	got, err := a.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].Seq)
	assert.Equal(t, 2, got[0].Participants)
	assert.Equal(t, int64(1), got[1].Seq)
}
