package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/influo/discovery/internal/avatar"
	"github.com/influo/discovery/models"
)

type fakeDirectory struct {
	mu       sync.Mutex
	primary  []models.CreatorProfile
	staging  []models.CreatorProfile
	inserted []models.CreatorProfile
}

func (d *fakeDirectory) SearchPrimary(ctx context.Context, f Filter) ([]models.CreatorProfile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.CreatorProfile(nil), d.primary...), nil
}

func (d *fakeDirectory) SearchStaging(ctx context.Context, f Filter) ([]models.CreatorProfile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.CreatorProfile(nil), d.staging...), nil
}

func (d *fakeDirectory) CountPrimary(ctx context.Context, f Filter) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.primary), nil
}

func (d *fakeDirectory) KnownIdentities(ctx context.Context, term string, tags []string, limit int) ([]string, error) {
	return []string{"Known Creator (@known)"}, nil
}

func (d *fakeDirectory) InsertStaging(ctx context.Context, profiles []models.CreatorProfile) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
		d.inserted = append(d.inserted, p)
	}
	return ids, nil
}

func (d *fakeDirectory) FindByID(ctx context.Context, id string) (*models.CreatorProfile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, list := range [][]models.CreatorProfile{d.staging, d.primary} {
		for _, p := range list {
			if p.ID == id {
				cp := p
				return &cp, nil
			}
		}
	}
	return nil, models.ErrCreatorNotFound
}

type fakeProvider struct {
	mu        sync.Mutex
	calls     int
	delay     time.Duration
	err       error
	responses []string
}

func (p *fakeProvider) Complete(ctx context.Context, system, user string) (string, error) {
	p.mu.Lock()
	p.calls++
	n := p.calls
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if p.err != nil {
		return "", p.err
	}
	idx := n - 1
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	return p.responses[idx], nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// creatorsJSON builds a well-formed generation payload with n distinct
// fitness creators.
func creatorsJSON(n int) string {
	out := `{"creators":[`
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"name":"Gen Creator%d","handle":"gencreator%d","bio":"Strength and conditioning, five days a week.","platforms":[{"platform":"instagram","handle":"gencreator%d","followerCount":50000}],"tags":["Fitness"]}`, i, i, i)
	}
	return out + `]}`
}

func dbProfile(name, handle string, tags ...string) models.CreatorProfile {
	return models.CreatorProfile{
		ID:             NewID(),
		Name:           name,
		Handle:         handle,
		Platforms:      []models.PlatformStat{{Platform: "instagram", Handle: handle, Followers: 40_000}},
		TotalFollowers: 40_000,
		Tags:           tags,
		Provenance:     models.ProvenanceAuthoritative,
	}
}

func newTestEngine(dir Directory, llm *fakeProvider, opts Options) *Engine {
	return NewEngine(dir, llm, NewDiscoveryCache(), avatar.NewResolver(""), testLogger(), opts)
}

func testLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestSearchUnscopedGenerativeDegrades(t *testing.T) {
	dir := &fakeDirectory{primary: []models.CreatorProfile{dbProfile("Plain Browse", "plainbrowse")}}
	llm := &fakeProvider{responses: []string{creatorsJSON(3)}}
	e := newTestEngine(dir, llm, Options{})

	resp, err := e.Search(context.Background(), SearchRequest{Generative: true, Limit: 20})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if resp.Source != models.SourceDB {
		t.Fatalf("unscoped generative request must degrade to the authoritative path, got %q", resp.Source)
	}
	if got := llm.callCount(); got != 0 {
		t.Fatalf("unscoped request must never reach the generator, provider saw %d calls", got)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("unscoped browse must still return the directory: %d items", len(resp.Items))
	}
}

func TestSearchAuthoritativeMergeAndOrder(t *testing.T) {
	shared := dbProfile("Shared Person", "shared", "Fitness")
	dir := &fakeDirectory{
		primary: []models.CreatorProfile{shared, dbProfile("Primary Only", "primonly")},
		staging: []models.CreatorProfile{
			{ID: NewID(), Name: "Shared Person", Handle: "SHARED", Provenance: models.ProvenanceGenerated,
				Platforms: []models.PlatformStat{{Platform: "tiktok", Handle: "shared", Followers: 30_000}}},
		},
	}
	e := newTestEngine(dir, &fakeProvider{responses: []string{creatorsJSON(1)}}, Options{StagingFirst: true})

	resp, err := e.Search(context.Background(), SearchRequest{Term: "shared", Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if resp.Source != models.SourceDB {
		t.Fatalf("expected db source, got %q", resp.Source)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("handle collision not deduplicated: %d items", len(resp.Items))
	}
	for _, it := range resp.Items {
		if strings.EqualFold(it.Handle, "shared") && it.Provenance != models.ProvenanceGenerated {
			t.Fatal("staging-first precedence must keep the staging copy")
		}
	}
	for i := 1; i < len(resp.Items); i++ {
		if resp.Items[i-1].ID > resp.Items[i].ID {
			t.Fatal("merged results must be ordered by id")
		}
	}
	if resp.HasMore {
		t.Fatal("two items under a limit of 10 must not report more")
	}
}

func TestSearchAuthoritativeExactTagHitsFirst(t *testing.T) {
	racing := dbProfile("Carla Speedway", "carlaspeed", "Racing")
	other := dbProfile("Arno Baker", "arnobakes", "Baking")
	// Force "other" to sort first by id so the partition has work to do.
	if racing.ID < other.ID {
		racing.ID, other.ID = other.ID, racing.ID
	}
	dir := &fakeDirectory{primary: []models.CreatorProfile{racing, other}}
	e := newTestEngine(dir, &fakeProvider{responses: []string{creatorsJSON(1)}}, Options{})

	resp, err := e.Search(context.Background(), SearchRequest{Tags: []string{"racing"}, Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if resp.Items[0].Handle != "carlaspeed" {
		t.Fatalf("exact tag hit must lead the page, got %q first", resp.Items[0].Handle)
	}
	found := false
	for _, tag := range resp.NormalizedTags {
		if tag == "Racing" {
			found = true
		}
	}
	if !found {
		t.Fatalf("normalizedTags must surface item tags: %v", resp.NormalizedTags)
	}
}

func TestSearchAuthoritativePagination(t *testing.T) {
	dir := &fakeDirectory{}
	for i := 0; i < 5; i++ {
		dir.primary = append(dir.primary, dbProfile(fmt.Sprintf("Creator Number%d", i), fmt.Sprintf("creator%d", i)))
	}
	e := newTestEngine(dir, &fakeProvider{responses: []string{creatorsJSON(1)}}, Options{})

	resp, err := e.Search(context.Background(), SearchRequest{Term: "creator", Limit: 3})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Items) != 3 || !resp.HasMore {
		t.Fatalf("expected a truncated page with more available: %d items hasMore=%v", len(resp.Items), resp.HasMore)
	}
	if resp.NextCursor == nil || *resp.NextCursor != resp.Items[2].ID {
		t.Fatal("next cursor must be the last item's id")
	}
	if resp.TotalItems < 5 {
		t.Fatalf("total must cover at least the merged set: %d", resp.TotalItems)
	}
}

func TestSearchGenerativeSingleFlight(t *testing.T) {
	dir := &fakeDirectory{}
	llm := &fakeProvider{delay: 20 * time.Millisecond, responses: []string{creatorsJSON(6)}}
	e := newTestEngine(dir, llm, Options{BatchSize: 6, FallbackAfter: 2 * time.Second})

	const n = 8
	var wg sync.WaitGroup
	responses := make([]*models.SearchResponse, n)
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			responses[i], errs[i] = e.Search(context.Background(),
				SearchRequest{Tags: []string{"fitness"}, Generative: true, Limit: 3})
		}(i)
	}
	wg.Wait()

	if got := llm.callCount(); got != 1 {
		t.Fatalf("concurrent identical queries must share one generation, provider saw %d calls", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("request %d failed: %v", i, errs[i])
		}
		if responses[i].Source != models.SourceAI {
			t.Fatalf("request %d fell back unexpectedly: %q", i, responses[i].Source)
		}
		if responses[i].Items[0].ID != responses[0].Items[0].ID {
			t.Fatal("all waiters must observe the same batch")
		}
	}
}

func TestSearchGenerativeFallbackKeepsGenerationAlive(t *testing.T) {
	dir := &fakeDirectory{primary: []models.CreatorProfile{dbProfile("Fit Fiona", "fitfiona", "Fitness")}}
	llm := &fakeProvider{delay: 200 * time.Millisecond, responses: []string{creatorsJSON(4)}}
	e := newTestEngine(dir, llm, Options{BatchSize: 4, FallbackAfter: 30 * time.Millisecond})

	req := SearchRequest{Tags: []string{"fitness"}, Generative: true, Limit: 3}
	start := time.Now()
	resp, err := e.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if resp.Source != models.SourceDB {
		t.Fatalf("slow generation must fall back to db, got %q", resp.Source)
	}
	if time.Since(start) > time.Second {
		t.Fatal("fallback did not fire in time")
	}

	// The generation keeps running in the background and must land in the
	// cache, so the next identical request is served from it.
	key, _ := req.Canonicalize(e.opts.PageSizeMax, e.opts.PageSizeDefault)
	deadline := time.Now().Add(2 * time.Second)
	for e.cache.Lookup(key) == nil {
		if time.Now().After(deadline) {
			t.Fatal("background generation never populated the cache")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err = e.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("second search: %v", err)
	}
	if resp.Source != models.SourceAI {
		t.Fatalf("cached batch must serve the follow-up, got %q", resp.Source)
	}
}

func TestSearchGenerativeProviderErrorFallsBack(t *testing.T) {
	dir := &fakeDirectory{primary: []models.CreatorProfile{dbProfile("Fit Fiona", "fitfiona", "Fitness")}}
	llm := &fakeProvider{err: errors.New("upstream 503")}
	e := newTestEngine(dir, llm, Options{FallbackAfter: time.Second})

	resp, err := e.Search(context.Background(), SearchRequest{Tags: []string{"fitness"}, Generative: true})
	if err != nil {
		t.Fatalf("provider failure must not surface: %v", err)
	}
	if resp.Source != models.SourceDB {
		t.Fatalf("expected db fallback, got %q", resp.Source)
	}
}

func TestSearchGenerativeEmptyRetry(t *testing.T) {
	dir := &fakeDirectory{}
	llm := &fakeProvider{responses: []string{`{"creators":[]}`, creatorsJSON(3)}}
	e := newTestEngine(dir, llm, Options{BatchSize: 6, FallbackAfter: 2 * time.Second})

	resp, err := e.Search(context.Background(), SearchRequest{Tags: []string{"fitness"}, Generative: true, Limit: 2})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if got := llm.callCount(); got != 2 {
		t.Fatalf("empty first pass must trigger exactly one retry, provider saw %d calls", got)
	}
	if len(resp.Items) == 0 {
		t.Fatal("retry output must reach the caller")
	}
}

func TestSearchGenerativeExhaustionInvalidates(t *testing.T) {
	dir := &fakeDirectory{}
	llm := &fakeProvider{responses: []string{creatorsJSON(12)}}
	e := newTestEngine(dir, llm, Options{BatchSize: 12, FallbackAfter: 2 * time.Second})

	req := SearchRequest{Tags: []string{"fitness"}, Generative: true, Limit: 10}
	resp, err := e.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Items) != 10 || !resp.HasMore {
		t.Fatalf("expected a full page with more promised: %d hasMore=%v", len(resp.Items), resp.HasMore)
	}
	if resp.EndNote == "" {
		t.Fatal("an exhausted batch must carry the end note")
	}
	if resp.NextCursor == nil {
		t.Fatal("exhausted batch must still hand out a cursor")
	}
	if _, perr := uuid.Parse(*resp.NextCursor); perr != nil {
		t.Fatalf("future cursor must be a valid uuid: %v", perr)
	}
	for _, it := range resp.Items {
		if *resp.NextCursor <= it.ID {
			t.Fatal("future cursor must sort after every returned id")
		}
	}

	// Invalidation means the next request regenerates.
	if _, gerr := e.Search(context.Background(), req); gerr != nil {
		t.Fatalf("regeneration search: %v", gerr)
	}
	if got := llm.callCount(); got != 2 {
		t.Fatalf("invalidated batch must regenerate, provider saw %d calls", got)
	}
}

func TestSearchGenerativePersistsToStaging(t *testing.T) {
	dir := &fakeDirectory{}
	llm := &fakeProvider{responses: []string{creatorsJSON(3)}}
	e := newTestEngine(dir, llm, Options{BatchSize: 3, FallbackAfter: 2 * time.Second})

	resp, err := e.Search(context.Background(), SearchRequest{Tags: []string{"fitness"}, Generative: true, Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	dir.mu.Lock()
	persisted := len(dir.inserted)
	dir.mu.Unlock()
	if persisted != 3 {
		t.Fatalf("accepted candidates must be staged, got %d", persisted)
	}
	if resp.Provenance.AI != len(resp.Items) || resp.Provenance.DB != 0 {
		t.Fatalf("generated page must count as ai: %+v", resp.Provenance)
	}
}

func TestCreatorResolvesFromSideIndex(t *testing.T) {
	dir := &fakeDirectory{}
	llm := &fakeProvider{responses: []string{creatorsJSON(2)}}
	e := newTestEngine(dir, llm, Options{BatchSize: 2, FallbackAfter: 2 * time.Second})

	resp, err := e.Search(context.Background(), SearchRequest{Tags: []string{"fitness"}, Generative: true, Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	id := resp.Items[0].ID

	got, err := e.Creator(context.Background(), id)
	if err != nil {
		t.Fatalf("fresh generated profile must be viewable immediately: %v", err)
	}
	if got.Handle != resp.Items[0].Handle {
		t.Fatalf("wrong profile: %q vs %q", got.Handle, resp.Items[0].Handle)
	}

	if _, err := e.Creator(context.Background(), NewID()); !errors.Is(err, models.ErrCreatorNotFound) {
		t.Fatalf("unknown id must be not-found, got %v", err)
	}
}

func TestCreatorFallsThroughToDirectory(t *testing.T) {
	p := dbProfile("Dana Wells", "danawells")
	dir := &fakeDirectory{primary: []models.CreatorProfile{p}}
	e := newTestEngine(dir, &fakeProvider{responses: []string{creatorsJSON(1)}}, Options{})

	got, err := e.Creator(context.Background(), p.ID)
	if err != nil || got.Handle != "danawells" {
		t.Fatalf("directory lookup failed: %v %+v", err, got)
	}
}
