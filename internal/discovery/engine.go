package discovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/influo/discovery/internal/avatar"
	"github.com/influo/discovery/models"
	"github.com/influo/discovery/provider"
)

// errGenerationUnavailable marks a generation that failed on the external
// call itself (timeout, transport). It routes waiters to the authoritative
// fallback instead of surfacing an error.
var errGenerationUnavailable = errors.New("generative service unavailable")

// Directory is the engine's view of the two creator collections: the primary
// directory of real profiles and the staging directory of previously
// accepted generated ones.
type Directory interface {
	SearchPrimary(ctx context.Context, f Filter) ([]models.CreatorProfile, error)
	SearchStaging(ctx context.Context, f Filter) ([]models.CreatorProfile, error)
	CountPrimary(ctx context.Context, f Filter) (int, error)
	KnownIdentities(ctx context.Context, term string, tags []string, limit int) ([]string, error)
	InsertStaging(ctx context.Context, profiles []models.CreatorProfile) ([]string, error)
	FindByID(ctx context.Context, id string) (*models.CreatorProfile, error)
}

// Options tunes the engine. Zero values fall back to sensible defaults.
type Options struct {
	BatchSize         int
	ExclusionSample   int
	PageSizeMax       int
	PageSizeDefault   int
	GenerationTimeout time.Duration
	FallbackAfter     time.Duration
	StagingFirst      bool
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 12
	}
	if o.ExclusionSample <= 0 {
		o.ExclusionSample = 300
	}
	if o.PageSizeMax <= 0 {
		o.PageSizeMax = 50
	}
	if o.PageSizeDefault <= 0 {
		o.PageSizeDefault = 12
	}
	if o.GenerationTimeout <= 0 {
		o.GenerationTimeout = 45 * time.Second
	}
	if o.FallbackAfter <= 0 {
		o.FallbackAfter = 15 * time.Second
	}
	return o
}

// Engine answers "find creators matching X" by combining the authoritative
// directories with an on-demand generative pipeline, coordinated through a
// per-process DiscoveryCache.
type Engine struct {
	dir     Directory
	llm     provider.Provider
	cache   *DiscoveryCache
	avatars avatar.Resolver
	logger  *log.Logger
	opts    Options

	sideMu sync.RWMutex
	side   map[string]*models.CreatorProfile
}

func NewEngine(dir Directory, llm provider.Provider, cache *DiscoveryCache, avatars avatar.Resolver, logger *log.Logger, opts Options) *Engine {
	if logger == nil {
		logger = log.New(log.Writer(), "[DISCOVERY] ", log.LstdFlags)
	}
	if cache == nil {
		cache = NewDiscoveryCache()
	}
	return &Engine{
		dir:     dir,
		llm:     llm,
		cache:   cache,
		avatars: avatars,
		logger:  logger,
		opts:    opts.withDefaults(),
		side:    make(map[string]*models.CreatorProfile),
	}
}

// Search serves one discovery query. Generative mode is only entered when the
// request asks for it and carries at least one discriminating filter;
// everything else, including an unscoped generative request, goes straight to
// the authoritative path.
func (e *Engine) Search(ctx context.Context, req SearchRequest) (*models.SearchResponse, error) {
	key, f := req.Canonicalize(e.opts.PageSizeMax, e.opts.PageSizeDefault)

	if !req.Generative || !req.Discriminating() {
		return e.searchAuthoritative(ctx, f)
	}

	batch, gen, owner := e.cache.Begin(key)
	if batch != nil {
		return e.assembleBatchPage(batch, f), nil
	}
	if owner {
		// The generation outlives this request on purpose: a fallback below
		// does not cancel it, so it can still populate the cache.
		go e.runGeneration(gen, f)
	} else {
		singleflightShared.Inc()
	}

	timer := time.NewTimer(e.opts.FallbackAfter)
	defer timer.Stop()
	select {
	case <-gen.Done():
		b, err := gen.Result()
		if err != nil {
			if errors.Is(err, errGenerationUnavailable) {
				fallbacksTotal.Inc()
				return e.searchAuthoritative(ctx, f)
			}
			return nil, err
		}
		return e.assembleBatchPage(b, f), nil
	case <-timer.C:
		fallbacksTotal.Inc()
		return e.searchAuthoritative(ctx, f)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Creator resolves a single profile: the live side-index of freshly generated
// candidates first, then the durable directories.
func (e *Engine) Creator(ctx context.Context, id string) (*models.CreatorProfile, error) {
	e.sideMu.RLock()
	p := e.side[id]
	e.sideMu.RUnlock()
	if p != nil {
		return p, nil
	}
	return e.dir.FindByID(ctx, id)
}

// searchAuthoritative runs the compound-filter search over both directories
// in parallel, merges by handle, and paginates with a limit+1 probe.
func (e *Engine) searchAuthoritative(ctx context.Context, f Filter) (*models.SearchResponse, error) {
	var primary, staging []models.CreatorProfile
	var total int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		primary, err = e.dir.SearchPrimary(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		staging, err = e.dir.SearchStaging(gctx, f)
		return err
	})
	g.Go(func() error {
		n, err := e.dir.CountPrimary(gctx, f)
		if err != nil {
			// The total is advertised as approximate; a count failure is
			// not worth failing the page over.
			e.logger.Printf("count failed: %v", err)
			return nil
		}
		total = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ordered := mergeDirectories(primary, staging, e.opts.StagingFirst)
	ordered = partitionExactTagHits(ordered, f.Tags)

	hasMore := len(ordered) > f.Limit
	items := ordered
	if hasMore {
		items = ordered[:f.Limit]
	}
	var nextCursor *string
	if hasMore && len(items) > 0 {
		id := items[len(items)-1].ID
		nextCursor = &id
	}
	if total < len(ordered) {
		total = len(ordered)
	}
	if items == nil {
		items = []models.CreatorProfile{}
	}

	searchesTotal.WithLabelValues(string(models.SourceDB)).Inc()
	return &models.SearchResponse{
		Items:          items,
		NormalizedTags: harvestTags(f.Tags, items),
		RelatedTags:    relatedItemTags(f.Tags, items),
		NextCursor:     nextCursor,
		TotalItems:     total,
		HasMore:        hasMore,
		Source:         models.SourceDB,
		Provenance:     countProvenance(items),
	}, nil
}

// mergeDirectories deduplicates by case-insensitive handle, first seen wins.
// Precedence between staging and primary is configuration, not policy.
func mergeDirectories(primary, staging []models.CreatorProfile, stagingFirst bool) []models.CreatorProfile {
	lists := [][]models.CreatorProfile{staging, primary}
	if !stagingFirst {
		lists = [][]models.CreatorProfile{primary, staging}
	}
	seen := make(map[string]struct{}, len(primary)+len(staging))
	var out []models.CreatorProfile
	for _, list := range lists {
		for _, p := range list {
			k := strings.ToLower(p.Handle)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// partitionExactTagHits stably moves profiles with an exact canonical tag
// match ahead of the rest. Not a re-sort: order within each group holds.
func partitionExactTagHits(items []models.CreatorProfile, queryTags []string) []models.CreatorProfile {
	if len(queryTags) == 0 || len(items) == 0 {
		return items
	}
	want := make(map[string]struct{}, len(queryTags))
	for _, t := range queryTags {
		want[strings.ToLower(t)] = struct{}{}
	}
	hit := func(p models.CreatorProfile) bool {
		for _, t := range p.Tags {
			if _, ok := want[strings.ToLower(CanonicalTag(t))]; ok {
				return true
			}
		}
		return false
	}
	out := make([]models.CreatorProfile, 0, len(items))
	for _, p := range items {
		if hit(p) {
			out = append(out, p)
		}
	}
	for _, p := range items {
		if !hit(p) {
			out = append(out, p)
		}
	}
	return out
}

// assembleBatchPage paginates a generated batch and handles the exhaustion
// path: future cursor out, cache entry gone, so the next poll regenerates.
func (e *Engine) assembleBatchPage(b *CandidateBatch, f Filter) *models.SearchResponse {
	page, hasMore, next, exhausted := paginateBatch(b, f.Cursor, f.Limit)

	var nextCursor *string
	var endNote string
	if hasMore {
		id := next.ID
		nextCursor = &id
	}
	if exhausted {
		e.cache.Invalidate(b.Key)
		endNote = "That's everyone for this search right now. Fresh creators are being lined up, check back shortly."
	}

	items := append([]models.CreatorProfile{}, page...)
	searchesTotal.WithLabelValues(string(models.SourceAI)).Inc()
	return &models.SearchResponse{
		Items:          items,
		NormalizedTags: harvestTags(f.Tags, items),
		RelatedTags:    relatedItemTags(f.Tags, items),
		NextCursor:     nextCursor,
		TotalItems:     len(b.Items),
		HasMore:        hasMore,
		EndNote:        endNote,
		Source:         models.SourceAI,
		Provenance:     countProvenance(items),
	}
}

// runGeneration executes the full candidate pipeline and publishes the
// outcome. It always completes the in-flight handle, whatever happens.
func (e *Engine) runGeneration(gen *generation, f Filter) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), e.opts.GenerationTimeout)
	defer cancel()

	exclusions, err := e.dir.KnownIdentities(ctx, f.Term, f.Tags, e.opts.ExclusionSample)
	if err != nil {
		e.logger.Printf("exclusion sample failed for %q: %v", gen.key, err)
		exclusions = nil
	}

	cands, err := e.invokeAndParse(ctx, f, e.opts.BatchSize, exclusions)
	if err == nil && len(cands) == 0 {
		// One retry at a smaller ask before giving up on this run.
		cands, err = e.invokeAndParse(ctx, f, e.opts.BatchSize/2, exclusions)
	}
	if err != nil {
		e.logger.Printf("generation failed for %q: %v", gen.key, err)
		e.cache.Complete(gen, nil, fmt.Errorf("%w: %v", errGenerationUnavailable, err))
		return
	}

	items := buildBatchItems(cands, f.Tags, e.avatars, func(reason string) {
		candidatesRejected.WithLabelValues(reason).Inc()
	})

	if len(items) > 0 {
		ids, perr := e.dir.InsertStaging(ctx, items)
		if perr != nil {
			// Durable staging is best-effort; the in-memory batch still
			// serves the caller.
			e.logger.Printf("staging persist failed for %q: %v", gen.key, perr)
		} else {
			for i := range items {
				items[i].ID = ids[i]
			}
		}
		e.indexProfiles(items)
	}

	generationSeconds.Observe(time.Since(start).Seconds())
	e.cache.Complete(gen, &CandidateBatch{Key: gen.key, Items: items, CreatedAt: time.Now()}, nil)
}

func (e *Engine) invokeAndParse(ctx context.Context, f Filter, count int, exclusions []string) ([]rawCandidate, error) {
	if count < 1 {
		count = 1
	}
	system, user := buildPrompt(f, count, exclusions)
	raw, err := e.llm.Complete(ctx, system, user)
	if err != nil {
		return nil, err
	}
	return parseCandidates(raw), nil
}

// indexProfiles keeps a live id-to-profile map so a profile view right after
// generation sees the same object the search returned.
func (e *Engine) indexProfiles(items []models.CreatorProfile) {
	e.sideMu.Lock()
	defer e.sideMu.Unlock()
	for i := range items {
		p := items[i]
		e.side[p.ID] = &p
	}
}
