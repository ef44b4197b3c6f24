// Package db is the incremental compilation database: fragments, per-file
// records, the dependency graph, and the artifact cache, behind one
// reader/writer lock. The Indexer is the only writer of fragment content;
// backends read concurrently and commit artifacts through short write
// sections. Content hashes are the sole source of truth for staleness —
// no timestamps are load-bearing.
package db

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/fenlang/fen/internal/ast"
)

// Database owns all shared compilation state for one Session. Many
// concurrent readers, one writer; parsing and code generation always happen
// outside the lock, so hold times stay short.
type Database struct {
	mu  sync.RWMutex
	log *slog.Logger

	files  map[FileID]*FileRecord
	byPath map[string]FileID
	frags  map[FragID]*Fragment

	// symbols resolves a declared name to its defining fragments. This is
	// the lookup oracle the dependency scanner and backends query.
	symbols map[string]map[FragID]struct{}

	graph     *depGraph
	artifacts map[artifactKey]*Artifact

	mirror   *Mirror // optional persistent artifact cache, may be nil
	nextFile FileID
}

// New creates an empty Database. A nil logger falls back to slog.Default.
func New(log *slog.Logger) *Database {
	if log == nil {
		log = slog.Default()
	}
	return &Database{
		log:       log,
		files:     make(map[FileID]*FileRecord),
		byPath:    make(map[string]FileID),
		frags:     make(map[FragID]*Fragment),
		symbols:   make(map[string]map[FragID]struct{}),
		graph:     newDepGraph(),
		artifacts: make(map[artifactKey]*Artifact),
	}
}

// SetMirror attaches a persistent artifact cache. Mirror I/O always happens
// outside the Database lock.
func (d *Database) SetMirror(m *Mirror) {
	d.mu.Lock()
	d.mirror = m
	d.mu.Unlock()
}

// --- File records ---

// InternFile returns the FileID for path, creating an empty record on first
// sight.
func (d *Database) InternFile(path string) FileID {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.byPath[path]; ok {
		return id
	}
	d.nextFile++
	id := d.nextFile
	d.files[id] = &FileRecord{ID: id, Path: path}
	d.byPath[path] = id
	return id
}

// FileByPath looks up an already-interned file.
func (d *Database) FileByPath(path string) (FileID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byPath[path]
	return id, ok
}

// FilePath returns the path for a file id, or "" if unknown.
func (d *Database) FilePath(id FileID) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if rec, ok := d.files[id]; ok {
		return rec.Path
	}
	return ""
}

// FileHash returns the stored whole-file content hash ("" before first
// successful index).
func (d *Database) FileHash(id FileID) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if rec, ok := d.files[id]; ok {
		return rec.Hash
	}
	return ""
}

// SetFileMeta records a file's content hash and import list after a
// successful reindex, and clears any parse-error sentinel.
func (d *Database) SetFileMeta(id FileID, hash string, imports []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.files[id]
	if !ok {
		d.log.Warn("set file meta on unknown file", "file", id)
		return
	}
	rec.Hash = hash
	rec.Imports = append([]string(nil), imports...)
	rec.parseErr = ""
}

// FileImports returns the declared imports recorded for a file.
func (d *Database) FileImports(id FileID) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if rec, ok := d.files[id]; ok {
		return append([]string(nil), rec.Imports...)
	}
	return nil
}

// SetParseError marks every fragment of the file dirty with an error
// sentinel. Fragment AST handles and hashes are left untouched, so other
// files keep resolving against the last good index. The whole-file hash is
// cleared: the next reindex must never mistake the broken state for
// current.
func (d *Database) SetParseError(id FileID, msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.files[id]
	if !ok {
		d.log.Warn("parse error on unknown file", "file", id)
		return
	}
	rec.parseErr = msg
	rec.Hash = ""
	for _, fid := range rec.Frags {
		if f, ok := d.frags[fid]; ok {
			f.state = StateDirty
			f.errMsg = msg
		}
	}
}

// FileParseErr returns the file's parse-error sentinel, "" when healthy.
func (d *Database) FileParseErr(id FileID) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if rec, ok := d.files[id]; ok {
		return rec.parseErr
	}
	return ""
}

// --- Fragments ---

// PutFragment creates or updates the fragment for decl in file and marks it
// Dirty. The returned id is stable across edits that keep the declaration's
// name and kind.
func (d *Database) PutFragment(file FileID, decl ast.Decl, hash string) FragID {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := FragID{File: file, Name: decl.DeclName(), Kind: decl.DeclKind()}
	rec, ok := d.files[file]
	if !ok {
		d.log.Warn("put fragment on unknown file", "file", file, "name", decl.DeclName())
		return id
	}
	f, exists := d.frags[id]
	if !exists {
		f = &Fragment{ID: id, File: file}
		d.frags[id] = f
		rec.Frags = append(rec.Frags, id)
		if d.symbols[id.Name] == nil {
			d.symbols[id.Name] = make(map[FragID]struct{})
		}
		d.symbols[id.Name][id] = struct{}{}
	}
	f.AST = decl
	f.Hash = hash
	f.state = StateDirty
	f.errMsg = ""
	return id
}

// RefreshAST re-points an unchanged fragment at the latest parse without
// touching its state or hash.
func (d *Database) RefreshAST(id FragID, decl ast.Decl) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.frags[id]
	if !ok {
		d.log.Warn("refresh on unknown fragment", "frag", id.String())
		return
	}
	f.AST = decl
	f.errMsg = ""
}

// RemoveFragment deletes a fragment together with its edges and artifacts.
// Dependents are dirtied first: their output referenced a definition that
// no longer exists.
func (d *Database) RemoveFragment(id FragID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.frags[id]
	if !ok {
		d.log.Warn("remove unknown fragment", "frag", id.String())
		return
	}
	for _, dep := range d.graph.dependents(id) {
		if df, ok := d.frags[dep]; ok {
			df.state = StateDirty
		}
	}
	d.graph.removeNode(id)

	if set, ok := d.symbols[id.Name]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(d.symbols, id.Name)
		}
	}
	if rec, ok := d.files[f.File]; ok {
		for i, fid := range rec.Frags {
			if fid == id {
				rec.Frags = append(rec.Frags[:i], rec.Frags[i+1:]...)
				break
			}
		}
	}
	for key := range d.artifacts {
		if key.frag == id {
			delete(d.artifacts, key)
		}
	}
	delete(d.frags, id)
}

// FragmentsByFile returns a file's fragments in declaration order; empty
// for unknown files.
func (d *Database) FragmentsByFile(id FileID) []FragID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if rec, ok := d.files[id]; ok {
		return append([]FragID(nil), rec.Frags...)
	}
	return nil
}

// FragmentAST returns the fragment's AST handle.
func (d *Database) FragmentAST(id FragID) (ast.Decl, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if f, ok := d.frags[id]; ok {
		return f.AST, true
	}
	return nil, false
}

// FragmentHash returns the fragment's current content hash ("" if unknown).
func (d *Database) FragmentHash(id FragID) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if f, ok := d.frags[id]; ok {
		return f.Hash
	}
	return ""
}

// IsDirty is the O(1) state check. Unknown fragments report false.
func (d *Database) IsDirty(id FragID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	f, ok := d.frags[id]
	return ok && f.state == StateDirty
}

// DirtyFragments scans for all Dirty fragments. The dirty set is always
// derived by query, never cached across mutations.
func (d *Database) DirtyFragments() []FragID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []FragID
	for id, f := range d.frags {
		if f.state == StateDirty {
			out = append(out, id)
		}
	}
	sortFrags(out)
	return out
}

// MarkDirty flips a fragment to Dirty. Unknown ids are logged no-ops.
func (d *Database) MarkDirty(id FragID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.frags[id]
	if !ok {
		d.log.Warn("mark dirty on unknown fragment", "frag", id.String())
		return
	}
	f.state = StateDirty
}

// MarkTranspiled flips a fragment to Clean, but only when hashAtGen still
// matches the fragment's current hash. A concurrent re-index between
// generation and this call re-dirties the fragment; last-writer-wins on
// state is safe precisely because of this re-check.
func (d *Database) MarkTranspiled(id FragID, hashAtGen string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.markTranspiledLocked(id, hashAtGen)
}

func (d *Database) markTranspiledLocked(id FragID, hashAtGen string) bool {
	f, ok := d.frags[id]
	if !ok {
		d.log.Warn("mark transpiled on unknown fragment", "frag", id.String())
		return false
	}
	if f.Hash != hashAtGen {
		return false
	}
	f.state = StateClean
	f.errMsg = ""
	return true
}

// --- Symbol resolution (the lookup oracle) ---

// Resolve returns the fragments defining name, sorted deterministically.
// Multiple files may define the same name; callers pick by proximity.
func (d *Database) Resolve(name string) []FragID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := keys(d.symbols[name])
	sortFrags(out)
	return out
}

// --- Dependency graph ---

// SetEdges replaces a fragment's outgoing dependency edges wholesale.
// Endpoints that don't exist in the fragment store are dropped, keeping the
// no-dangling-edges invariant.
func (d *Database) SetEdges(from FragID, tos []FragID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.frags[from]; !ok {
		d.log.Warn("set edges on unknown fragment", "frag", from.String())
		return
	}
	kept := make([]FragID, 0, len(tos))
	for _, to := range tos {
		if _, ok := d.frags[to]; ok {
			kept = append(kept, to)
		}
	}
	d.graph.setEdges(from, kept)
}

// Dependencies returns what a fragment needs (forward edges).
func (d *Database) Dependencies(id FragID) []FragID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := d.graph.dependencies(id)
	sortFrags(out)
	return out
}

// Dependents returns who needs a fragment (reverse edges).
func (d *Database) Dependents(id FragID) []FragID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := d.graph.dependents(id)
	sortFrags(out)
	return out
}

// PropagateDirty walks the reverse dependency graph breadth-first from
// every dirty fragment in file, marking all transitive dependents Dirty.
// The traversal crosses file boundaries and a visited set makes it
// cycle-safe; each node is enqueued at most once, so it terminates at the
// fixed point. Returns the number of fragments newly dirtied.
//
// Single-level propagation would be unsound: with A -> B -> C and C
// changed, A would silently serve a stale artifact. Only the transitive
// form preserves incremental-equals-full.
func (d *Database) PropagateDirty(file FileID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.files[file]
	if !ok {
		d.log.Warn("propagate dirty on unknown file", "file", file)
		return 0
	}

	visited := make(map[FragID]bool)
	var queue []FragID
	for _, id := range rec.Frags {
		if f, ok := d.frags[id]; ok && f.state == StateDirty {
			visited[id] = true
			queue = append(queue, id)
		}
	}

	dirtied := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for dep := range d.graph.rev[cur] {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			if f, ok := d.frags[dep]; ok {
				if f.state != StateDirty {
					f.state = StateDirty
					dirtied++
				}
				queue = append(queue, dep)
			}
		}
	}
	return dirtied
}

// TransitiveFragments returns the file's fragments plus everything they
// transitively depend on (forward closure), sorted.
func (d *Database) TransitiveFragments(file FileID) []FragID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.files[file]
	if !ok {
		return nil
	}
	visited := make(map[FragID]bool)
	queue := append([]FragID(nil), rec.Frags...)
	for _, id := range queue {
		visited[id] = true
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for dep := range d.graph.fwd[cur] {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			queue = append(queue, dep)
		}
	}
	out := keys2(visited)
	sortFrags(out)
	return out
}

// --- Artifact cache ---

// InsertArtifact stores an artifact, atomically replacing any previous one
// for the same (fragment, target) slot.
func (d *Database) InsertArtifact(a Artifact) {
	d.mu.Lock()
	stored := a
	d.artifacts[artifactKey{frag: a.Frag, target: a.Target}] = &stored
	d.mu.Unlock()

	if m := d.mirrorRef(); m != nil {
		if err := m.Put(d.FilePath(a.Frag.File), &a); err != nil {
			d.log.Warn("artifact mirror write failed", "frag", a.Frag.String(), "err", err)
		}
	}
}

// Artifact returns the cached artifact for (id, target), or nil when absent
// or when the stored hash-at-generation no longer matches the fragment's
// current hash. A stale artifact is a cache miss, never an error.
func (d *Database) Artifact(id FragID, target Target) *Artifact {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.artifacts[artifactKey{frag: id, target: target}]
	if !ok {
		return nil
	}
	f, ok := d.frags[id]
	if !ok || f.Hash != a.Hash {
		return nil
	}
	out := *a
	return &out
}

// CommitArtifact inserts an artifact and marks its fragment transpiled in
// one exclusive section, so no reader can observe the artifact without the
// matching state. Returns false when the fragment was re-dirtied since
// generation started (the artifact is still stored; hash re-checks keep it
// harmless). The mirror write happens outside the lock.
func (d *Database) CommitArtifact(a Artifact) bool {
	d.mu.Lock()
	stored := a
	d.artifacts[artifactKey{frag: a.Frag, target: a.Target}] = &stored
	cleaned := d.markTranspiledLocked(a.Frag, a.Hash)
	path := ""
	if rec, ok := d.files[a.Frag.File]; ok {
		path = rec.Path
	}
	m := d.mirror
	d.mu.Unlock()

	if m != nil && path != "" {
		if err := m.Put(path, &a); err != nil {
			d.log.Warn("artifact mirror write failed", "frag", a.Frag.String(), "err", err)
		}
	}
	return cleaned
}

// DeepHash returns the fragment's combined own+dependency hash, used to
// stamp artifacts for warm-start validation.
func (d *Database) DeepHash(id FragID) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.hashDeep(id)
}

// WarmArtifact consults the persistent mirror for a previous process's
// artifact. The restore is only served when both the fragment hash and the
// transitive dependency hash recorded at generation time still match — the
// deep check is what makes reuse sound even though the fragment is Dirty.
func (d *Database) WarmArtifact(id FragID, target Target) *Artifact {
	d.mu.RLock()
	m := d.mirror
	var path, hash, deep string
	if f, ok := d.frags[id]; ok {
		hash = f.Hash
		if rec, ok := d.files[f.File]; ok {
			path = rec.Path
		}
		deep = d.hashDeep(id)
	}
	d.mu.RUnlock()

	if m == nil || path == "" {
		return nil
	}
	a, err := m.Get(path, id, target)
	if err != nil {
		d.log.Warn("artifact mirror read failed", "frag", id.String(), "err", err)
		return nil
	}
	if a == nil || a.Hash != hash || a.DepsHash != deep {
		return nil
	}
	return a
}

func (d *Database) mirrorRef() *Mirror {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mirror
}

// --- Stats ---

// Snapshot summarizes the database contents at a point in time.
func (d *Database) Snapshot() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	dirty := 0
	for _, f := range d.frags {
		if f.state == StateDirty {
			dirty++
		}
	}
	return Stats{
		Files:          len(d.files),
		FragmentsTotal: len(d.frags),
		DirtyCount:     dirty,
		Edges:          d.graph.edgeCount(),
		Artifacts:      len(d.artifacts),
	}
}

func keys2(set map[FragID]bool) []FragID {
	if len(set) == 0 {
		return nil
	}
	out := make([]FragID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func sortFrags(ids []FragID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].File != ids[j].File {
			return ids[i].File < ids[j].File
		}
		if ids[i].Kind != ids[j].Kind {
			return ids[i].Kind < ids[j].Kind
		}
		return ids[i].Name < ids[j].Name
	})
}
