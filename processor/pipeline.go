package processor

import (
	"context"
	"io"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jhump/validgen"
)

// Config represents the configuration of a Pipeline. The zero value is
// usable: it logs nothing, uses one worker per CPU and a private cache.
type Config struct {
	// Logger receives structured logs. Defaults to a no-op logger.
	Logger *zap.Logger
	// Workers bounds the number of declarations processed concurrently.
	// Defaults to GOMAXPROCS.
	Workers int
	// Cache holds outcomes across passes. Share one cache between all passes
	// over successive snapshots of the same source graph.
	Cache *Cache[*Outcome]
	// RuntimePath is the import path of the validation runtime used by
	// generated code. Defaults to validgen.RuntimePackage.
	RuntimePath string
}

// Execute runs a single pass over the given snapshot. It is shorthand for
// NewPipeline(*cfg).Run(ctx, snap).
func (cfg *Config) Execute(ctx context.Context, snap *Snapshot) (*Pass, error) {
	return NewPipeline(*cfg).Run(ctx, snap)
}

// Outcome is the cached result of running one declaration through
// extraction, resolution and emission. Outcomes are shared between passes and
// must not be modified. Positions in Err are relative to the node's content.
type Outcome struct {
	Declaration *Declaration
	Resolved    *ResolvedDeclaration
	// Artifact is set when State is StateEmitted. Its Location is not set;
	// that is filled in per pass.
	Artifact *Artifact
	State    State
	Err      error
}

// Stats counts what happened during a pass.
type Stats struct {
	// Seen is the number of candidates the scanner produced.
	Seen int
	// Hits is the number of candidates whose outcome came from the cache.
	Hits int
	// Computed is the number of candidates this pass ran through extraction,
	// resolution and emission.
	Computed int
	// Evicted is the number of cache entries removed after the pass.
	Evicted int
	// Skipped is the number of declarations that produced no artifact.
	Skipped int
}

// Pass is the result of running the pipeline over one snapshot.
type Pass struct {
	Version uint64
	// Artifacts holds the declaration artifacts and support units, sorted by
	// namespace and file name.
	Artifacts []*Artifact
	// Diagnostics holds one entry per skipped declaration, sorted by position.
	Diagnostics []Diagnostic
	// States is the final lifecycle state of every marked node.
	States map[NodeID]State
	// Locations holds the location of every package in the snapshot, sorted.
	// Hosts use it to find output that no longer has a declaration.
	Locations []string
	Stats     Stats
}

// Pipeline discovers, extracts, resolves and emits validation declarations.
// It is safe for concurrent use; all state shared between runs lives in its
// cache.
type Pipeline struct {
	log       *zap.Logger
	workers   int
	cache     *Cache[*Outcome]
	scanner   Scanner
	extractor Extractor
	resolver  Resolver
	emitter   Emitter
}

// NewPipeline creates a pipeline with the given configuration.
func NewPipeline(cfg Config) *Pipeline {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	cache := cfg.Cache
	if cache == nil {
		cache = &Cache[*Outcome]{}
	}
	return &Pipeline{
		log:      componentLogger(cfg.Logger, "pipeline"),
		workers:  workers,
		cache:    cache,
		resolver: Resolver{RuntimePath: cfg.RuntimePath},
		emitter:  Emitter{RuntimePath: cfg.RuntimePath},
	}
}

// Run performs one pass over the given snapshot. Failures of individual
// declarations never fail the pass; they are reported as diagnostics. The only
// error Run returns is the context's, when the pass is abandoned. An abandoned
// pass leaves the cache consistent and does not evict anything.
func (p *Pipeline) Run(ctx context.Context, snap *Snapshot) (*Pass, error) {
	if snap == nil {
		return nil, errors.AssertionFailedf("nil snapshot")
	}
	start := time.Now()
	log := p.log.With(zap.Uint64(FieldVersion, snap.Version))
	pass := &Pass{Version: snap.Version, States: map[NodeID]State{}}

	var candidates []Candidate
	for c := range p.scanner.Scan(snap, func(d Diagnostic) {
		pass.Diagnostics = append(pass.Diagnostics, d)
		pass.States[d.Node] = StateSkipped
	}) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
		pass.States[c.Node.ID] = StateDiscovered
	}
	// positional order decides which of two colliding declarations wins
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidateLess(candidates[i], candidates[j])
	})

	outcomes := make([]*Outcome, len(candidates))
	hits := make([]bool, len(candidates))
	var computed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, c := range candidates {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i], hits[i] = p.cache.GetOrCompute(c.Node.ID, fingerprint(c.Node), snap.Version, func() *Outcome {
				computed.Add(1)
				return p.process(c)
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		log.Debug("pass abandoned", zap.Int(FieldCount, len(candidates)))
		return nil, err
	}

	p.assemble(pass, candidates, outcomes)
	pass.Locations = locations(snap)

	live := make(map[NodeID]struct{}, len(candidates))
	for i, c := range candidates {
		live[c.Node.ID] = struct{}{}
		if hits[i] {
			pass.Stats.Hits++
		}
	}
	pass.Stats.Seen = len(candidates)
	pass.Stats.Computed = int(computed.Load())
	pass.Stats.Evicted = p.cache.Sweep(live, snap.Version)
	for _, st := range pass.States {
		if st == StateSkipped {
			pass.Stats.Skipped++
		}
	}

	log.Info("pass complete",
		zap.Int("seen", pass.Stats.Seen),
		zap.Int("hits", pass.Stats.Hits),
		zap.Int("computed", pass.Stats.Computed),
		zap.Int("evicted", pass.Stats.Evicted),
		zap.Int("skipped", pass.Stats.Skipped),
		zap.Int(FieldCount, len(pass.Artifacts)),
		durationField(start))
	return pass, nil
}

func candidateLess(a, b Candidate) bool {
	pa, pb := a.Node.ContentPos, b.Node.ContentPos
	if pa.Filename != pb.Filename {
		return pa.Filename < pb.Filename
	}
	if pa.Line != pb.Line {
		return pa.Line < pb.Line
	}
	return a.Node.ID < b.Node.ID
}

// process runs one candidate through extraction, resolution and emission. It
// never panics: a panic in any stage becomes an internal error.
func (p *Pipeline) process(c Candidate) (out *Outcome) {
	out = &Outcome{State: StateDiscovered}
	defer func() {
		if r := recover(); r != nil {
			out.Err = errors.AssertionFailedf("panic while processing %s: %v", c.Node.ID, r)
			out.State = StateSkipped
		}
	}()

	decl, err := p.extractor.Extract(c)
	if err != nil {
		out.Err, out.State = err, StateSkipped
		return out
	}
	out.Declaration, out.State = decl, StateExtracted

	rd, err := p.resolver.Resolve(decl)
	if err != nil {
		out.Err, out.State = err, StateSkipped
		return out
	}
	out.Resolved, out.State = rd, StateResolved

	art, err := p.emitter.Emit(rd)
	if err != nil {
		out.Err, out.State = err, StateSkipped
		return out
	}
	out.Artifact, out.State = art, StateEmitted
	return out
}

type supportKey struct {
	namespace string
	owner     string
}

// assemble turns outcomes into the pass's artifacts and diagnostics. It
// claims every top-level name a declaration introduces into its package, so
// that colliding declarations are reported instead of producing code that
// does not compile.
func (p *Pipeline) assemble(pass *Pass, candidates []Candidate, outcomes []*Outcome) {
	type claim struct {
		namespace, name string
	}
	claimed := map[claim]string{}
	var supports []supportKey
	supportOf := map[supportKey]Candidate{}
	supportNS := map[supportKey]Namespace{}

	for i, c := range candidates {
		out := outcomes[i]
		id := c.Node.ID
		if out.Err != nil {
			pass.Diagnostics = append(pass.Diagnostics, p.diagnose(c, out.Err))
			pass.States[id] = StateSkipped
			p.log.Debug("declaration skipped", zap.String(FieldNode, string(id)), zap.Error(out.Err))
			continue
		}

		decl := out.Declaration
		ns := decl.Namespace.Path
		owner := "type:" + ns + "." + decl.OwningType
		names := map[string]string{
			decl.ArtifactName():      "artifact:" + string(id),
			decl.GeneratedTypeName(): owner,
		}
		if decl.Marker.Kind == validgen.CustomValidationExtension {
			names[validgen.GeneratedHelperName(decl.Method)] = "helper:" + string(id)
		}
		var conflict string
		for name, claimant := range names {
			if prev, ok := claimed[claim{ns, name}]; ok && prev != claimant && (conflict == "" || name < conflict) {
				conflict = name
			}
		}
		if conflict != "" {
			err := errors.Mark(errors.Newf("%s: generated name %s is already used by another declaration in package %s", decl.Identity(), conflict, ns), ErrDuplicateArtifactName)
			pass.Diagnostics = append(pass.Diagnostics, NewDiagnostic(id, c.MarkerPos, err))
			pass.States[id] = StateSkipped
			continue
		}
		for name, claimant := range names {
			claimed[claim{ns, name}] = claimant
		}

		art := *out.Artifact
		art.Location = location(c.Node)
		pass.Artifacts = append(pass.Artifacts, &art)
		pass.States[id] = StateEmitted
		p.log.Debug("declaration emitted",
			zap.Stringer(FieldDeclaration, decl.Identity()),
			zap.String(FieldArtifact, art.Name))

		key := supportKey{namespace: ns, owner: decl.OwningType}
		if _, ok := supportOf[key]; !ok {
			supports = append(supports, key)
			supportOf[key] = c
			supportNS[key] = decl.Namespace
		}
	}

	for _, key := range supports {
		c := supportOf[key]
		art, err := p.emitter.EmitSupport(supportNS[key], key.owner)
		if err != nil {
			pass.Diagnostics = append(pass.Diagnostics, NewDiagnostic(c.Node.ID, c.MarkerPos, errors.WithAssertionFailure(err)))
			continue
		}
		art.Location = location(c.Node)
		pass.Artifacts = append(pass.Artifacts, art)
	}

	sort.Slice(pass.Artifacts, func(i, j int) bool {
		a, b := pass.Artifacts[i], pass.Artifacts[j]
		if a.Namespace.Path != b.Namespace.Path {
			return a.Namespace.Path < b.Namespace.Path
		}
		return a.FileName < b.FileName
	})
	sortDiagnostics(pass.Diagnostics)
}

// diagnose anchors an outcome's error, whose position is relative to the
// node's content, at the node's actual location.
func (p *Pipeline) diagnose(c Candidate, err error) Diagnostic {
	pos := c.MarkerPos
	var ewp *ErrorWithPosition
	if errors.As(err, &ewp) && ewp.Pos().Line > 0 && ewp.Pos().Filename == "" {
		pos = relPos{Line: ewp.Pos().Line, Column: ewp.Pos().Column}.anchor(c.Node.ContentPos)
	}
	return NewDiagnostic(c.Node.ID, pos, err)
}

func location(n *Node) string {
	if pkg := n.Scope.Package(); pkg != nil {
		return pkg.Location
	}
	return ""
}

func locations(snap *Snapshot) []string {
	seen := map[string]struct{}{}
	var locs []string
	for _, n := range snap.Nodes {
		loc := location(n)
		if _, ok := seen[loc]; ok || loc == "" {
			continue
		}
		seen[loc] = struct{}{}
		locs = append(locs, loc)
	}
	sort.Strings(locs)
	return locs
}

func sortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i].Pos, diags[j].Pos
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return diags[i].Message < diags[j].Message
	})
}

// Follow runs a pass for every snapshot the feed produces and publishes each
// one to the sink, until the feed is exhausted or the context is done. All
// passes share the pipeline's cache, so only declarations that changed are
// recomputed.
func (p *Pipeline) Follow(ctx context.Context, feed Feed, sink Sink) error {
	for {
		snap, err := feed.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		pass, err := p.Run(ctx, snap)
		if err != nil {
			return err
		}
		if err := sink.Publish(ctx, pass); err != nil {
			return errors.Wrapf(err, "publishing pass %d", pass.Version)
		}
	}
}
