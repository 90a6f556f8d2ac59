package artifacts

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func writeResult(t *testing.T, dir, name string, mod time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
	return path
}

func TestFindLatest(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	writeResult(t, dir, "strategy_Foo_2023-01-01_10-00-00.fthypt", now.Add(-2*time.Hour))
	want := writeResult(t, dir, "strategy_Foo_2023-01-01_12-00-00.fthypt", now.Add(-time.Hour))
	// Other strategies and other file types are ignored.
	writeResult(t, dir, "strategy_Bar_2023-01-01_13-00-00.fthypt", now)
	writeResult(t, dir, "strategy_Foo_notes.txt", now)

	f := NewFinder(quietLogger(), dir, 0)
	got, err := f.FindLatest("Foo")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFindLatest_NoMatches(t *testing.T) {
	f := NewFinder(quietLogger(), t.TempDir(), 0)

	_, err := f.FindLatest("Foo")
	assert.Error(t, err)
}

func TestFindLatest_MissingDirectory(t *testing.T) {
	f := NewFinder(quietLogger(), filepath.Join(t.TempDir(), "nope"), 0)

	_, err := f.FindLatest("Foo")
	assert.Error(t, err)
}

func TestFindLatest_SingleResult(t *testing.T) {
	dir := t.TempDir()
	want := writeResult(t, dir, "strategy_Foo_2023-01-01_10-00-00.fthypt", time.Now())

	f := NewFinder(quietLogger(), dir, 0)
	got, err := f.FindLatest("Foo")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
