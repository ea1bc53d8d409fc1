package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/influo/discovery/internal/discovery"
	"github.com/influo/discovery/models"
)

// Store gives the discovery engine access to the two creator directories:
// the primary directory of real profiles and the staging directory of
// previously accepted generated ones.
type Store struct {
	DB *sql.DB
}

const (
	tablePrimary = "creators"
	tableStaging = "generated_creators"
)

// NewWithDSN opens a postgres connection and verifies it.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

const selectCols = `id, name, handle, COALESCE(avatar_url,''), COALESCE(bio,''), COALESCE(location,''),
	COALESCE(tags,'{}'), COALESCE(platforms,'[]'), COALESCE(total_followers,0), COALESCE(content_types,'{}'),
	COALESCE(gender,''), COALESCE(age_range,''), COALESCE(audience_location,''),
	COALESCE(engagement_rate,0), COALESCE(authenticity,0), created_at`

// SearchPrimary runs the compound filter over the primary directory with a
// limit+1 probe for pagination.
func (s *Store) SearchPrimary(ctx context.Context, f discovery.Filter) ([]models.CreatorProfile, error) {
	return s.search(ctx, tablePrimary, f)
}

// SearchStaging runs the same filter over the staging directory.
func (s *Store) SearchStaging(ctx context.Context, f discovery.Filter) ([]models.CreatorProfile, error) {
	return s.search(ctx, tableStaging, f)
}

func (s *Store) search(ctx context.Context, table string, f discovery.Filter) ([]models.CreatorProfile, error) {
	where, args := buildWhere(f, table == tablePrimary, true)
	q := fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY id ASC LIMIT %d`, selectCols, table, where, f.Limit+1)
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", table, err)
	}
	defer rows.Close()

	provenance := models.ProvenanceAuthoritative
	if table == tableStaging {
		provenance = models.ProvenanceGenerated
	}
	var out []models.CreatorProfile
	for rows.Next() {
		p, err := scanProfile(rows, provenance)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountPrimary approximates the match count: the primary directory only,
// cursor ignored.
func (s *Store) CountPrimary(ctx context.Context, f discovery.Filter) (int, error) {
	where, args := buildWhere(f, true, false)
	var n int
	err := s.DB.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, tablePrimary, where), args...).Scan(&n)
	return n, err
}

// KnownIdentities samples existing names and handles relevant to the current
// term and tags, so the generator can be told not to repeat known creators.
// The sample is split evenly across both directories and bounded by limit.
func (s *Store) KnownIdentities(ctx context.Context, term string, tags []string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 300
	}
	per := limit / 2
	f := discovery.Filter{Term: term, Tags: tags}
	var out []string
	for _, table := range []string{tablePrimary, tableStaging} {
		where, args := buildWhere(f, table == tablePrimary, false)
		q := fmt.Sprintf(`SELECT name, handle FROM %s%s ORDER BY id DESC LIMIT %d`, table, where, per)
		rows, err := s.DB.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, fmt.Errorf("identity sample %s: %w", table, err)
		}
		for rows.Next() {
			var name, handle string
			if err := rows.Scan(&name, &handle); err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, fmt.Sprintf("%s (@%s)", name, handle))
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

// InsertStaging persists validated generated profiles and returns the
// store-assigned identifiers, aligned with the input order. Entries are
// written once and never mutated here afterwards.
func (s *Store) InsertStaging(ctx context.Context, profiles []models.CreatorProfile) ([]string, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ids := make([]string, len(profiles))
	for i, p := range profiles {
		id := uuid.Must(uuid.NewV7()).String()
		platformsJSON, err := json.Marshal(p.Platforms)
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO generated_creators
  (id, name, handle, avatar_url, bio, location, tags, platform_names, platforms, total_followers,
   content_types, gender, age_range, audience_location, engagement_rate, authenticity, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,NOW())
ON CONFLICT (handle) DO NOTHING`,
			id, p.Name, p.Handle, p.AvatarURL, p.Bio, p.Location,
			pq.Array(p.Tags), pq.Array(platformNames(p.Platforms)), platformsJSON, p.TotalFollowers,
			pq.Array(p.ContentTypes), p.Demographics.Gender, p.Demographics.AgeRange,
			p.Demographics.AudienceLocation, p.Demographics.EngagementRate, p.Demographics.Authenticity)
		if err != nil {
			return nil, fmt.Errorf("insert staging %q: %w", p.Handle, err)
		}
		ids[i] = id
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// FindByID looks a profile up in the staging directory first, then primary.
func (s *Store) FindByID(ctx context.Context, id string) (*models.CreatorProfile, error) {
	for _, table := range []string{tableStaging, tablePrimary} {
		provenance := models.ProvenanceGenerated
		if table == tablePrimary {
			provenance = models.ProvenanceAuthoritative
		}
		row := s.DB.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, selectCols, table), id)
		p, err := scanProfile(row, provenance)
		if err == nil {
			return &p, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	return nil, models.ErrCreatorNotFound
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(r rowScanner, provenance models.Provenance) (models.CreatorProfile, error) {
	var p models.CreatorProfile
	var platformsJSON []byte
	err := r.Scan(&p.ID, &p.Name, &p.Handle, &p.AvatarURL, &p.Bio, &p.Location,
		pq.Array(&p.Tags), &platformsJSON, &p.TotalFollowers, pq.Array(&p.ContentTypes),
		&p.Demographics.Gender, &p.Demographics.AgeRange, &p.Demographics.AudienceLocation,
		&p.Demographics.EngagementRate, &p.Demographics.Authenticity, &p.CreatedAt)
	if err != nil {
		return models.CreatorProfile{}, err
	}
	if len(platformsJSON) > 0 {
		_ = json.Unmarshal(platformsJSON, &p.Platforms)
	}
	p.Provenance = provenance
	return p, nil
}

func platformNames(platforms []models.PlatformStat) []string {
	out := make([]string, 0, len(platforms))
	for _, p := range platforms {
		out = append(out, strings.ToLower(p.Platform))
	}
	return out
}

// buildWhere assembles the compound filter. includeActive adds the primary
// directory's visibility flag; includeCursor adds the id > cursor condition.
func buildWhere(f discovery.Filter, includeActive, includeCursor bool) (string, []interface{}) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if includeActive {
		conds = append(conds, "active = TRUE")
	}
	if f.Term != "" {
		p := arg("%" + strings.ToLower(discovery.Singularize(f.Term)) + "%")
		conds = append(conds, fmt.Sprintf(
			"(name ILIKE %s OR handle ILIKE %s OR location ILIKE %s OR array_to_string(tags, ' ') ILIKE %s)",
			p, p, p, p))
	}
	if len(f.Tags) > 0 {
		var ors []string
		for _, t := range f.Tags {
			ors = append(ors, fmt.Sprintf("array_to_string(tags, ' ') ILIKE %s", arg("%"+strings.ToLower(t)+"%")))
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}
	if f.Name != "" {
		conds = append(conds, fmt.Sprintf("name ILIKE %s", arg("%"+f.Name+"%")))
	}
	if f.Location != "" {
		conds = append(conds, fmt.Sprintf("location ILIKE %s", arg("%"+f.Location+"%")))
	}
	if f.Gender != "" {
		conds = append(conds, fmt.Sprintf("LOWER(gender) = LOWER(%s)", arg(f.Gender)))
	}
	if f.AgeRange != "" {
		conds = append(conds, fmt.Sprintf("age_range = %s", arg(f.AgeRange)))
	}
	if f.AudienceLocation != "" {
		conds = append(conds, fmt.Sprintf("audience_location ILIKE %s", arg("%"+f.AudienceLocation+"%")))
	}
	if len(f.Platforms) > 0 {
		var ors []string
		for _, pl := range f.Platforms {
			ors = append(ors, fmt.Sprintf("%s = ANY(platform_names)", arg(strings.ToLower(pl))))
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}
	if len(f.ContentTypes) > 0 {
		var ors []string
		for _, ct := range f.ContentTypes {
			ors = append(ors, fmt.Sprintf("array_to_string(content_types, ' ') ILIKE %s", arg("%"+strings.ToLower(ct)+"%")))
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}
	if f.MinFollowers > 0 {
		conds = append(conds, fmt.Sprintf("total_followers >= %s", arg(f.MinFollowers)))
	}
	if f.MaxFollowers > 0 {
		conds = append(conds, fmt.Sprintf("total_followers <= %s", arg(f.MaxFollowers)))
	}
	if f.MinEngagement > 0 {
		conds = append(conds, fmt.Sprintf("engagement_rate >= %s", arg(f.MinEngagement)))
	}
	if f.MinAuthenticity > 0 {
		conds = append(conds, fmt.Sprintf("authenticity >= %s", arg(f.MinAuthenticity)))
	}
	if includeCursor && f.Cursor != "" {
		conds = append(conds, fmt.Sprintf("id > %s", arg(f.Cursor)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
