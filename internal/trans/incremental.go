package trans

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/fenlang/fen/internal/ast"
	"github.com/fenlang/fen/internal/db"
)

// runner is the target-independent incremental loop shared by all backends.
// It walks a file's transitive fragment set and decides, per fragment,
// between cache hit, mirror restore, and regeneration. Generation runs in a
// three-phase pipeline: serial classification, parallel generation, serial
// commit.
type runner struct {
	db       *db.Database
	log      *slog.Logger
	gen      generator
	parallel bool
}

func newRunner(d *db.Database, log *slog.Logger, gen generator, parallel bool) *runner {
	if log == nil {
		log = slog.Default()
	}
	return &runner{db: d, log: log, gen: gen, parallel: parallel}
}

func (r *runner) Target() db.Target { return r.gen.target() }

// genItem is one fragment that needs regeneration, snapshotted before the
// parallel phase so workers never touch the database.
type genItem struct {
	id   db.FragID
	decl ast.Decl
	hash string
	deep string
}

type genResult struct {
	item genItem
	out  Output
	err  error
}

func (r *runner) TransIncremental(ctx context.Context, fileID db.FileID) (*Result, error) {
	if msg := r.db.FileParseErr(fileID); msg != "" {
		return nil, fmt.Errorf("cannot generate %s for %s: %s", r.Target(), r.db.FilePath(fileID), msg)
	}

	res := &Result{Outputs: make(map[db.FragID]Output)}

	// ---- Phase A: serial classification ----
	var pending []genItem
	for _, id := range r.db.TransitiveFragments(fileID) {
		if !r.db.IsDirty(id) {
			if a := r.db.Artifact(id, r.Target()); a != nil {
				res.Outputs[id] = Output{Code: a.Code, Header: a.Header}
				res.CacheHits++
				continue
			}
			// Clean but never generated for this target (another
			// backend cleaned it, or a fresh session): regenerate
			// without re-dirtying the fragment.
		} else if a := r.db.WarmArtifact(id, r.Target()); a != nil {
			// A previous process generated this exact content with the
			// same transitive dependency hashes.
			r.db.CommitArtifact(*a)
			res.Outputs[id] = Output{Code: a.Code, Header: a.Header}
			res.WarmHits++
			continue
		}

		decl, ok := r.db.FragmentAST(id)
		if !ok {
			continue
		}
		pending = append(pending, genItem{
			id:   id,
			decl: decl,
			hash: r.db.FragmentHash(id),
			deep: r.db.DeepHash(id),
		})
	}

	if len(pending) == 0 {
		return res, nil
	}

	// ---- Phase B: generation, optionally on a worker pool ----
	results := make([]genResult, len(pending))
	ec := &emitCtx{db: r.db, file: fileID}

	if r.parallel && len(pending) > 1 {
		numWorkers := min(runtime.NumCPU(), len(pending))
		workCh := make(chan int, len(pending))
		for i := range pending {
			workCh <- i
		}
		close(workCh)

		var wg sync.WaitGroup
		for w := 0; w < numWorkers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range workCh {
					results[i] = r.genOne(ctx, pending[i], ec)
				}
			}()
		}
		wg.Wait()
	} else {
		for i, item := range pending {
			results[i] = r.genOne(ctx, item, ec)
		}
	}

	// ---- Phase C: serial commit ----
	var errs []error
	for _, gr := range results {
		if gr.err != nil {
			errs = append(errs, gr.err)
			continue
		}
		committed := r.db.CommitArtifact(db.Artifact{
			Frag:     gr.item.id,
			Target:   r.Target(),
			Code:     gr.out.Code,
			Header:   gr.out.Header,
			Hash:     gr.item.hash,
			DepsHash: gr.item.deep,
		})
		if !committed {
			// Re-indexed while we were generating. The output matches
			// the snapshot we took, so it is still the right answer for
			// this pass; the fragment stays dirty for the next one.
			r.log.Debug("fragment re-dirtied during generation", "frag", gr.item.id.String())
		}
		res.Outputs[gr.item.id] = gr.out
		res.Generated++
	}

	if len(errs) > 0 {
		return res, fmt.Errorf("%s generation had %d error(s): %w", r.Target(), len(errs), errs[0])
	}
	return res, nil
}

func (r *runner) genOne(ctx context.Context, item genItem, ec *emitCtx) genResult {
	if err := ctx.Err(); err != nil {
		return genResult{item: item, err: err}
	}
	out, err := r.gen.genDecl(item.decl, ec)
	if ce, ok := err.(*CodegenError); ok && ce.Frag == (db.FragID{}) {
		ce.Frag = item.id
	}
	return genResult{item: item, out: out, err: err}
}
