package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenlang/fen/internal/ast"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	return New(nil)
}

// putFn stores a trivial function fragment and returns its id.
func putFn(t *testing.T, d *Database, file FileID, name, body string) FragID {
	t.Helper()
	src := "fn " + name + "() { " + body + " }"
	decl := &ast.FuncDecl{Name: name, Src: src}
	return d.PutFragment(file, decl, HashDecl(src))
}

func TestInternFile_StableIDs(t *testing.T) {
	t.Parallel()
	d := newTestDB(t)

	a := d.InternFile("lib/math.fen")
	b := d.InternFile("app/main.fen")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, d.InternFile("lib/math.fen"))
	assert.Equal(t, "lib/math.fen", d.FilePath(a))

	id, ok := d.FileByPath("app/main.fen")
	require.True(t, ok)
	assert.Equal(t, b, id)

	_, ok = d.FileByPath("nope.fen")
	assert.False(t, ok)
}

func TestPutFragment_NewIsDirty(t *testing.T) {
	t.Parallel()
	d := newTestDB(t)
	file := d.InternFile("a.fen")

	id := putFn(t, d, file, "square", "return x * x")
	assert.True(t, d.IsDirty(id))
	assert.Equal(t, FragID{File: file, Name: "square", Kind: ast.KindFunc}, id)

	decl, ok := d.FragmentAST(id)
	require.True(t, ok)
	assert.Equal(t, "square", decl.DeclName())
}

func TestPutFragment_SameNameSameID(t *testing.T) {
	t.Parallel()
	d := newTestDB(t)
	file := d.InternFile("a.fen")

	id1 := putFn(t, d, file, "inc", "return x + 1")
	d.MarkTranspiled(id1, d.FragmentHash(id1))
	require.False(t, d.IsDirty(id1))

	id2 := putFn(t, d, file, "inc", "return x + 2")
	assert.Equal(t, id1, id2)
	assert.True(t, d.IsDirty(id2))
	assert.Len(t, d.FragmentsByFile(file), 1)
}

func TestMarkTranspiled_HashRecheck(t *testing.T) {
	t.Parallel()
	d := newTestDB(t)
	file := d.InternFile("a.fen")
	id := putFn(t, d, file, "f", "return 1")
	oldHash := d.FragmentHash(id)

	// Content changes between generation and the mark: the stale mark
	// must not clean the fragment.
	putFn(t, d, file, "f", "return 2")
	assert.False(t, d.MarkTranspiled(id, oldHash))
	assert.True(t, d.IsDirty(id))

	assert.True(t, d.MarkTranspiled(id, d.FragmentHash(id)))
	assert.False(t, d.IsDirty(id))
}

func TestMarkTranspiled_UnknownIsNoop(t *testing.T) {
	t.Parallel()
	d := newTestDB(t)
	ghost := FragID{File: 99, Name: "ghost", Kind: ast.KindFunc}
	assert.False(t, d.MarkTranspiled(ghost, "x"))
	d.MarkDirty(ghost) // must not panic
}

func TestResolve_MultipleDefiners(t *testing.T) {
	t.Parallel()
	d := newTestDB(t)
	f1 := d.InternFile("a.fen")
	f2 := d.InternFile("b.fen")

	id1 := putFn(t, d, f1, "helper", "return 1")
	id2 := putFn(t, d, f2, "helper", "return 2")

	got := d.Resolve("helper")
	require.Len(t, got, 2)
	assert.Equal(t, []FragID{id1, id2}, got)
	assert.Empty(t, d.Resolve("missing"))
}

func TestSetEdges_DropsDanglingEndpoints(t *testing.T) {
	t.Parallel()
	d := newTestDB(t)
	file := d.InternFile("a.fen")
	caller := putFn(t, d, file, "caller", "return callee()")
	callee := putFn(t, d, file, "callee", "return 1")
	ghost := FragID{File: file, Name: "ghost", Kind: ast.KindFunc}

	d.SetEdges(caller, []FragID{callee, ghost})
	assert.Equal(t, []FragID{callee}, d.Dependencies(caller))
	assert.Equal(t, []FragID{caller}, d.Dependents(callee))
}

func TestSetEdges_WholesaleReplacement(t *testing.T) {
	t.Parallel()
	d := newTestDB(t)
	file := d.InternFile("a.fen")
	a := putFn(t, d, file, "a", "return b()")
	b := putFn(t, d, file, "b", "return 1")
	c := putFn(t, d, file, "c", "return 1")

	d.SetEdges(a, []FragID{b})
	d.SetEdges(a, []FragID{c})
	assert.Equal(t, []FragID{c}, d.Dependencies(a))
	assert.Empty(t, d.Dependents(b))
	assert.Equal(t, []FragID{a}, d.Dependents(c))
}

func TestPropagateDirty_Transitive(t *testing.T) {
	t.Parallel()
	d := newTestDB(t)
	file := d.InternFile("a.fen")

	// a -> b -> c, c changes, both b and a must be dirtied.
	a := putFn(t, d, file, "a", "return b()")
	b := putFn(t, d, file, "b", "return c()")
	c := putFn(t, d, file, "c", "return 1")
	d.SetEdges(a, []FragID{b})
	d.SetEdges(b, []FragID{c})
	for _, id := range []FragID{a, b, c} {
		require.True(t, d.MarkTranspiled(id, d.FragmentHash(id)))
	}

	putFn(t, d, file, "c", "return 2")
	n := d.PropagateDirty(file)
	assert.Equal(t, 2, n)
	assert.True(t, d.IsDirty(a))
	assert.True(t, d.IsDirty(b))
}

func TestPropagateDirty_CycleTerminates(t *testing.T) {
	t.Parallel()
	d := newTestDB(t)
	file := d.InternFile("a.fen")

	// Mutual recursion: even <-> odd. Dirtying one dirties the other
	// exactly once; the visited set stops the walk at the fixed point.
	even := putFn(t, d, file, "is_even", "return is_odd(n - 1)")
	odd := putFn(t, d, file, "is_odd", "return is_even(n - 1)")
	d.SetEdges(even, []FragID{odd})
	d.SetEdges(odd, []FragID{even})
	require.True(t, d.MarkTranspiled(odd, d.FragmentHash(odd)))
	require.True(t, d.MarkTranspiled(even, d.FragmentHash(even)))

	putFn(t, d, file, "is_even", "return is_odd(n - 2)")
	n := d.PropagateDirty(file)
	assert.Equal(t, 1, n)
	assert.True(t, d.IsDirty(odd))
}

func TestPropagateDirty_CrossesFiles(t *testing.T) {
	t.Parallel()
	d := newTestDB(t)
	lib := d.InternFile("lib.fen")
	app := d.InternFile("app.fen")

	sq := putFn(t, d, lib, "square", "return x * x")
	main := putFn(t, d, app, "main", "return square(3)")
	d.SetEdges(main, []FragID{sq})
	require.True(t, d.MarkTranspiled(sq, d.FragmentHash(sq)))
	require.True(t, d.MarkTranspiled(main, d.FragmentHash(main)))

	putFn(t, d, lib, "square", "return x * x * 1")
	assert.Equal(t, 1, d.PropagateDirty(lib))
	assert.True(t, d.IsDirty(main))
}

func TestRemoveFragment_DirtiesDependents(t *testing.T) {
	t.Parallel()
	d := newTestDB(t)
	file := d.InternFile("a.fen")
	caller := putFn(t, d, file, "caller", "return gone()")
	gone := putFn(t, d, file, "gone", "return 1")
	d.SetEdges(caller, []FragID{gone})
	require.True(t, d.MarkTranspiled(caller, d.FragmentHash(caller)))
	require.True(t, d.MarkTranspiled(gone, d.FragmentHash(gone)))

	d.RemoveFragment(gone)
	assert.True(t, d.IsDirty(caller))
	assert.Empty(t, d.Dependencies(caller))
	assert.Empty(t, d.Resolve("gone"))
	assert.Len(t, d.FragmentsByFile(file), 1)

	_, ok := d.FragmentAST(gone)
	assert.False(t, ok)
}

func TestArtifact_StaleHashIsMiss(t *testing.T) {
	t.Parallel()
	d := newTestDB(t)
	file := d.InternFile("a.fen")
	id := putFn(t, d, file, "f", "return 1")
	hash := d.FragmentHash(id)

	d.InsertArtifact(Artifact{Frag: id, Target: TargetC, Code: "int f(void);", Hash: hash})
	require.NotNil(t, d.Artifact(id, TargetC))
	assert.Nil(t, d.Artifact(id, TargetRust))

	// Edit invalidates the cached artifact without deleting it.
	putFn(t, d, file, "f", "return 2")
	assert.Nil(t, d.Artifact(id, TargetC))
}

func TestCommitArtifact_AtomicInsertAndMark(t *testing.T) {
	t.Parallel()
	d := newTestDB(t)
	file := d.InternFile("a.fen")
	id := putFn(t, d, file, "f", "return 1")
	hash := d.FragmentHash(id)

	ok := d.CommitArtifact(Artifact{Frag: id, Target: TargetC, Code: "x", Hash: hash})
	assert.True(t, ok)
	assert.False(t, d.IsDirty(id))
	require.NotNil(t, d.Artifact(id, TargetC))

	// A commit racing a newer edit stores the artifact but leaves the
	// fragment dirty; the stale artifact is unreachable via hash checks.
	putFn(t, d, file, "f", "return 2")
	ok = d.CommitArtifact(Artifact{Frag: id, Target: TargetC, Code: "x", Hash: hash})
	assert.False(t, ok)
	assert.True(t, d.IsDirty(id))
	assert.Nil(t, d.Artifact(id, TargetC))
}

func TestTransitiveFragments_ForwardClosure(t *testing.T) {
	t.Parallel()
	d := newTestDB(t)
	lib := d.InternFile("lib.fen")
	app := d.InternFile("app.fen")

	helper := putFn(t, d, lib, "helper", "return 1")
	unused := putFn(t, d, lib, "unused", "return 2")
	main := putFn(t, d, app, "main", "return helper()")
	d.SetEdges(main, []FragID{helper})

	got := d.TransitiveFragments(app)
	assert.Equal(t, []FragID{helper, main}, got)
	assert.NotContains(t, got, unused)
}

func TestSetParseError_DirtiesAllKeepsASTs(t *testing.T) {
	t.Parallel()
	d := newTestDB(t)
	file := d.InternFile("a.fen")
	id := putFn(t, d, file, "f", "return 1")
	require.True(t, d.MarkTranspiled(id, d.FragmentHash(id)))

	d.SetParseError(file, "a.fen:3: expected '}'")
	assert.True(t, d.IsDirty(id))
	assert.Equal(t, "a.fen:3: expected '}'", d.FileParseErr(file))

	decl, ok := d.FragmentAST(id)
	require.True(t, ok)
	assert.Equal(t, "f", decl.DeclName())

	// A later clean index clears the sentinel.
	d.SetFileMeta(file, "newhash", nil)
	assert.Empty(t, d.FileParseErr(file))
}

func TestDeepHash_ChangesWithDependency(t *testing.T) {
	t.Parallel()
	d := newTestDB(t)
	file := d.InternFile("a.fen")
	a := putFn(t, d, file, "a", "return b()")
	b := putFn(t, d, file, "b", "return 1")
	d.SetEdges(a, []FragID{b})

	before := d.DeepHash(a)
	putFn(t, d, file, "b", "return 2")
	after := d.DeepHash(a)
	assert.NotEqual(t, before, after)

	// Own hash of a never changed.
	assert.NotEmpty(t, d.FragmentHash(a))
}

func TestSnapshot(t *testing.T) {
	t.Parallel()
	d := newTestDB(t)
	file := d.InternFile("a.fen")
	a := putFn(t, d, file, "a", "return b()")
	b := putFn(t, d, file, "b", "return 1")
	d.SetEdges(a, []FragID{b})
	d.InsertArtifact(Artifact{Frag: b, Target: TargetC, Code: "x", Hash: d.FragmentHash(b)})

	st := d.Snapshot()
	assert.Equal(t, 1, st.Files)
	assert.Equal(t, 2, st.FragmentsTotal)
	assert.Equal(t, 2, st.DirtyCount)
	assert.Equal(t, 1, st.Edges)
	assert.Equal(t, 1, st.Artifacts)
}

func TestHashDecl_NormalizesFormatting(t *testing.T) {
	t.Parallel()
	a := HashDecl("fn f() {\n  return 1\n}")
	b := HashDecl("fn f() {  // adds one\n\n  return   1\n}")
	c := HashDecl("fn f() {\n  return 2\n}")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestHashDecl_SlashesInsideStringsAreContent(t *testing.T) {
	t.Parallel()
	// // inside a string literal is content, not a comment: editing the
	// text after it must change the hash.
	a := HashDecl(`fn url() str { return "http://old.example" }`)
	b := HashDecl(`fn url() str { return "http://new.example" }`)
	assert.NotEqual(t, a, b)

	// A real comment after the string is still stripped.
	c := HashDecl(`fn url() str { return "http://old.example" } // v1`)
	d := HashDecl(`fn url() str { return "http://old.example" } // v2`)
	assert.Equal(t, c, d)
	assert.Equal(t, a, c)

	// Escaped quotes do not end the literal early.
	e := HashDecl(`fn f() str { return "say \"hi\" // here" }`)
	f := HashDecl(`fn f() str { return "say \"hi\" // there" }`)
	assert.NotEqual(t, e, f)
}

func TestSetEdges_DoesNotMutateCallerSlice(t *testing.T) {
	t.Parallel()
	d := newTestDB(t)
	file := d.InternFile("a.fen")
	caller := putFn(t, d, file, "caller", "return callee()")
	callee := putFn(t, d, file, "callee", "return 1")
	ghost := FragID{File: file, Name: "ghost", Kind: ast.KindFunc}

	tos := []FragID{ghost, callee}
	d.SetEdges(caller, tos)
	assert.Equal(t, []FragID{ghost, callee}, tos)
	assert.Equal(t, []FragID{callee}, d.Dependencies(caller))
}

func TestRemoveFragment_PrunesAllTargetArtifacts(t *testing.T) {
	t.Parallel()
	d := newTestDB(t)
	file := d.InternFile("a.fen")
	id := putFn(t, d, file, "f", "return 1")
	hash := d.FragmentHash(id)

	d.InsertArtifact(Artifact{Frag: id, Target: TargetC, Code: "x", Hash: hash})
	d.InsertArtifact(Artifact{Frag: id, Target: Target("wasm"), Code: "y", Hash: hash})
	require.Equal(t, 2, d.Snapshot().Artifacts)

	d.RemoveFragment(id)
	assert.Zero(t, d.Snapshot().Artifacts)
}
