package fen

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fsSrc = `
fn read_block(n int) int {
    return n * 512
}
`

const ioSrc = `
use fs

fn read_line(n int) int {
    return read_block(n) + 1
}
`

const appMainSrc = `
use io

fn main() int {
    return read_line(3)
}
`

func newSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	s, err := NewSession(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func compileSrc(t *testing.T, s *Session, path, src string, target Target) *Result {
	t.Helper()
	res, err := s.CompileSource(context.Background(), path, []byte(src), target)
	require.NoError(t, err)
	return res
}

func TestSession_LayeredEditPropagates(t *testing.T) {
	t.Parallel()
	s := newSession(t)

	compileSrc(t, s, "fs.fen", fsSrc, TargetC)
	compileSrc(t, s, "io.fen", ioSrc, TargetC)
	first := compileSrc(t, s, "app.fen", appMainSrc, TargetC)
	require.Contains(t, first.Outputs, FragID{File: mustFile(t, s, "app.fen"), Name: "main", Kind: "fn"})

	// Touch the bottom layer: everything above regenerates, nothing else.
	edited := `
fn read_block(n int) int {
    return n * 1024
}
`
	compileSrc(t, s, "fs.fen", edited, TargetC)
	res := compileSrc(t, s, "app.fen", appMainSrc, TargetC)
	assert.Equal(t, 2, res.Generated) // read_line and main; read_block was already regenerated by the fs compile
	assert.Empty(t, s.DB().DirtyFragments())
}

func TestSession_RecompileWithoutEditsIsAllHits(t *testing.T) {
	t.Parallel()
	s := newSession(t)
	compileSrc(t, s, "fs.fen", fsSrc, TargetC)
	compileSrc(t, s, "io.fen", ioSrc, TargetC)
	compileSrc(t, s, "app.fen", appMainSrc, TargetC)

	res := compileSrc(t, s, "app.fen", appMainSrc, TargetC)
	assert.Zero(t, res.Generated)
	assert.Equal(t, 3, res.CacheHits) // main, read_line, read_block
}

func TestSession_IncrementalEqualsFull(t *testing.T) {
	t.Parallel()

	edited := `
fn read_block(n int) int {
    return n * 2048
}
`

	// Incremental: build, edit the bottom layer, rebuild.
	inc := newSession(t)
	compileSrc(t, inc, "fs.fen", fsSrc, TargetC)
	compileSrc(t, inc, "io.fen", ioSrc, TargetC)
	compileSrc(t, inc, "app.fen", appMainSrc, TargetC)
	compileSrc(t, inc, "fs.fen", edited, TargetC)
	incRes := compileSrc(t, inc, "app.fen", appMainSrc, TargetC)
	incOut, err := inc.Assemble("app.fen", TargetC, incRes)
	require.NoError(t, err)

	// Full: a fresh session sees only the final state.
	full := newSession(t)
	compileSrc(t, full, "fs.fen", edited, TargetC)
	compileSrc(t, full, "io.fen", ioSrc, TargetC)
	fullRes := compileSrc(t, full, "app.fen", appMainSrc, TargetC)
	fullOut, err := full.Assemble("app.fen", TargetC, fullRes)
	require.NoError(t, err)

	assert.Equal(t, fullOut, incOut)
}

func TestSession_CacheHitsAreByteIdentical(t *testing.T) {
	t.Parallel()
	s := newSession(t)
	first := compileSrc(t, s, "fs.fen", fsSrc, TargetRust)
	second := compileSrc(t, s, "fs.fen", fsSrc, TargetRust)
	assert.Equal(t, first.Outputs, second.Outputs)
}

func TestSession_MultiTargetIndependence(t *testing.T) {
	t.Parallel()
	s := newSession(t)
	compileSrc(t, s, "fs.fen", fsSrc, TargetC)
	pyRes := compileSrc(t, s, "fs.fen", fsSrc, TargetPython)
	assert.Equal(t, 1, pyRes.Generated)

	// A second Python pass hits its own cache.
	again := compileSrc(t, s, "fs.fen", fsSrc, TargetPython)
	assert.Zero(t, again.Generated)
	assert.Equal(t, 1, again.CacheHits)
}

func TestSession_ParseErrorRecovery(t *testing.T) {
	t.Parallel()
	s := newSession(t)
	compileSrc(t, s, "fs.fen", fsSrc, TargetC)

	_, err := s.CompileSource(context.Background(), "fs.fen", []byte("fn broken( {\n"), TargetC)
	require.Error(t, err)

	// The fix compiles cleanly again.
	res := compileSrc(t, s, "fs.fen", fsSrc, TargetC)
	assert.NotEmpty(t, res.Outputs)
	assert.Empty(t, s.DB().DirtyFragments())
}

func TestSession_WarmStartAcrossSessions(t *testing.T) {
	t.Parallel()
	cache := filepath.Join(t.TempDir(), "cache.db")

	s1 := newSession(t, WithArtifactCache(cache))
	first := compileSrc(t, s1, "fs.fen", fsSrc, TargetC)
	assert.Equal(t, 1, first.Generated)
	require.NoError(t, s1.Close())

	s2 := newSession(t, WithArtifactCache(cache))
	second := compileSrc(t, s2, "fs.fen", fsSrc, TargetC)
	assert.Zero(t, second.Generated)
	assert.Equal(t, 1, second.WarmHits)
	assert.Equal(t, first.Outputs, second.Outputs)
}

func TestSession_CompileFromDisk(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "lib.fen")
	require.NoError(t, os.WriteFile(path, []byte(fsSrc), 0o644))

	s := newSession(t)
	res, err := s.Compile(context.Background(), path, TargetC)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Generated)

	// Unchanged on disk: pure cache pass.
	res, err = s.Compile(context.Background(), path, TargetC)
	require.NoError(t, err)
	assert.Zero(t, res.Generated)
	assert.Equal(t, 1, res.CacheHits)
}

func TestSession_StatsAccumulate(t *testing.T) {
	t.Parallel()
	s := newSession(t)
	compileSrc(t, s, "fs.fen", fsSrc, TargetC)
	compileSrc(t, s, "fs.fen", fsSrc, TargetC)

	st := s.Stats()
	assert.Equal(t, 2, st.Compiles)
	assert.Equal(t, 1, st.Generated)
	assert.Equal(t, 1, st.CacheHits)
	assert.NotEmpty(t, s.ID())
}

func mustFile(t *testing.T, s *Session, path string) FileID {
	t.Helper()
	fid, ok := s.DB().FileByPath(path)
	require.True(t, ok)
	return fid
}
