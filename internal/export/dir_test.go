package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirSink_WriteRead(t *testing.T) {
	ctx := context.Background()
	d, err := NewDirSink(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)

	b := testBundle(t, "s-1")
	key, err := d.Write(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(d.Dir, "s-1.mvdl"), key)

	got, err := d.Read(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, b, got)

	got, err = ReadFile(key)
	require.NoError(t, err)
	assert.Equal(t, b.Digest, got.Digest)
}

func TestDirSink_Idempotent(t *testing.T) {
	ctx := context.Background()
	d, err := NewDirSink(t.TempDir())
	require.NoError(t, err)

	b := testBundle(t, "s-1")
	_, err = d.Write(ctx, b)
	require.NoError(t, err)
	_, err = d.Write(ctx, b)
	require.NoError(t, err)

	other, err := NewBundle("s-1", "other-source", testResult(t, 1))
	require.NoError(t, err)
	_, err = d.Write(ctx, other)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestDirSink_NotFound(t *testing.T) {
	d, err := NewDirSink(t.TempDir())
	require.NoError(t, err)
	_, err = d.Read(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirSink_RejectsPathIDs(t *testing.T) {
	d, err := NewDirSink(t.TempDir())
	require.NoError(t, err)
	for _, id := range []string{"", "..", "a/b", `a\b`} {
		_, err := d.Read(context.Background(), id)
		assert.Error(t, err, "id %q", id)
	}
}

func TestDirSink_List(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	d, err := NewDirSink(dir)
	require.NoError(t, err)

	for _, id := range []string{"s-3", "s-1", "s-2"} {
		_, err := d.Write(ctx, testBundle(t, id))
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	list, err := d.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "s-1", list[0].SessionID)
	assert.Equal(t, "s-2", list[1].SessionID)
	assert.Equal(t, "s-3", list[2].SessionID)
}

func TestDirSink_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDirSink(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(d.Path("bad"), []byte("not cbor"), 0o644))

	_, err = d.Read(context.Background(), "bad")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	a, err := Open(ctx, Target{Kind: KindDir, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &DirSink{}, a)

	a, err = Open(ctx, Target{Kind: KindSQLite, DB: filepath.Join(t.TempDir(), "b.db")})
	require.NoError(t, err)
	assert.IsType(t, &Store{}, a)
	require.NoError(t, a.Close())

	_, err = Open(ctx, Target{Kind: KindSQLite})
	assert.Error(t, err)

	_, err = Open(ctx, Target{Kind: "tape"})
	assert.ErrorContains(t, err, "unknown kind")
}
