package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/cassidypignatello/bangun/internal/model"
	"github.com/cassidypignatello/bangun/internal/textnorm"
)

// Pool is the subset of pgxpool.Pool the store uses, satisfied by pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const materialColumns = `id, material_code, normalized_name, name_id, name_en, category, unit,
	price_min, price_max, price_avg, price_median, price_sample_size, price_updated_at,
	rating_avg, rating_sample_size, count_sold_total, seller_location, seller_tier,
	search_query, product_url, aliases`

const (
	sqlFindByNormalized = `SELECT ` + materialColumns + ` FROM materials WHERE normalized_name = $1 LIMIT 1`
	sqlFindByName       = `SELECT ` + materialColumns + ` FROM materials WHERE lower(name_id) = $1 OR lower(name_en) = $1 LIMIT 1`
	sqlFindByAlias      = `SELECT ` + materialColumns + ` FROM materials WHERE aliases @> ARRAY[$1]::text[] LIMIT 1`
	sqlFindBySubstring  = `SELECT ` + materialColumns + ` FROM materials WHERE name_id ILIKE '%' || $1 || '%' OR name_en ILIKE '%' || $1 || '%' LIMIT 1`
)

// preparedStatements lists the hot lookup queries to prepare on each new
// connection. The enrichment loop runs the ladder once per BOM line.
var preparedStatements = map[string]string{
	"find_by_normalized": sqlFindByNormalized,
	"find_by_name":       sqlFindByName,
	"find_by_alias":      sqlFindByAlias,
	"find_by_substring":  sqlFindBySubstring,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests with pgxmock.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS materials (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	material_code      TEXT NOT NULL UNIQUE,
	normalized_name    TEXT NOT NULL DEFAULT '',
	name_id            TEXT NOT NULL,
	name_en            TEXT NOT NULL DEFAULT '',
	category           TEXT NOT NULL DEFAULT 'dynamic',
	unit               TEXT NOT NULL DEFAULT 'pcs',
	price_min          BIGINT NOT NULL DEFAULT 0,
	price_max          BIGINT NOT NULL DEFAULT 0,
	price_avg          DOUBLE PRECISION NOT NULL DEFAULT 0,
	price_median       BIGINT NOT NULL DEFAULT 0,
	price_sample_size  INT NOT NULL DEFAULT 0,
	price_updated_at   TIMESTAMPTZ,
	rating_avg         DOUBLE PRECISION NOT NULL DEFAULT 0,
	rating_sample_size INT NOT NULL DEFAULT 0,
	count_sold_total   BIGINT NOT NULL DEFAULT 0,
	seller_location    TEXT NOT NULL DEFAULT '',
	seller_tier        TEXT NOT NULL DEFAULT '',
	search_query       TEXT NOT NULL DEFAULT '',
	product_url        TEXT NOT NULL DEFAULT '',
	aliases            TEXT[] NOT NULL DEFAULT '{}'
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_materials_normalized_name
	ON materials(normalized_name) WHERE normalized_name <> '';
CREATE INDEX IF NOT EXISTS idx_materials_aliases ON materials USING GIN (aliases);
CREATE INDEX IF NOT EXISTS idx_materials_price_updated_at ON materials(price_updated_at);

CREATE TABLE IF NOT EXISTS projects (
	id             TEXT PRIMARY KEY,
	status         TEXT NOT NULL DEFAULT 'draft',
	project_type   TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	location       TEXT NOT NULL DEFAULT '',
	bom            JSONB NOT NULL DEFAULT '[]',
	material_total BIGINT NOT NULL DEFAULT 0,
	labor_total    BIGINT NOT NULL DEFAULT 0,
	grand_total    BIGINT NOT NULL DEFAULT 0,
	progress       JSONB,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// FindPriceRecord walks the lookup ladder: exact normalized name, exact
// case-insensitive display name, alias containment, then substring match.
// Returns (nil, nil) when nothing matches.
func (s *PostgresStore) FindPriceRecord(ctx context.Context, materialName string) (*model.PriceRecord, error) {
	canonical := textnorm.Normalize(materialName)
	legacy := strings.ToLower(strings.TrimSpace(materialName))

	type step struct {
		sql string
		arg string
	}
	ladder := []step{}
	if canonical != "" {
		ladder = append(ladder, step{sqlFindByNormalized, canonical})
	}
	ladder = append(ladder,
		step{sqlFindByName, legacy},
		step{sqlFindByAlias, legacy},
		step{sqlFindBySubstring, legacy},
	)

	for _, st := range ladder {
		rec, err := s.scanMaterial(s.pool.QueryRow(ctx, st.sql, st.arg))
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, nil
}

func (s *PostgresStore) SearchMaterials(ctx context.Context, query string, limit int) ([]model.PriceRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+materialColumns+` FROM materials
		 WHERE name_id ILIKE '%' || $1 || '%' OR name_en ILIKE '%' || $1 || '%'
		 ORDER BY price_updated_at DESC NULLS LAST LIMIT $2`,
		strings.TrimSpace(query), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search materials")
	}
	defer rows.Close()
	return collectMaterials(rows)
}

func (s *PostgresStore) StaleMaterials(ctx context.Context, maxAge time.Duration, limit int) ([]model.PriceRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	cutoff := time.Now().UTC().Add(-maxAge)
	rows, err := s.pool.Query(ctx,
		`SELECT `+materialColumns+` FROM materials
		 WHERE price_updated_at IS NULL OR price_updated_at < $1
		 ORDER BY price_updated_at ASC NULLS FIRST LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stale materials")
	}
	defer rows.Close()
	return collectMaterials(rows)
}

// UpsertPriceRecord updates the matching material's price snapshot or
// inserts a new dynamic entry. Matching reuses the normalized-name,
// display-name and alias rungs of the lookup ladder so word-order variants
// and brand variations keep feeding one record; normalized_name is unique,
// so an insert under a variant of a cached material must never happen.
// Aliases only ever grow.
func (s *PostgresStore) UpsertPriceRecord(ctx context.Context, rec *model.PriceRecord) (*model.PriceRecord, error) {
	lookupKey := ""
	if len(rec.Aliases) > 0 {
		lookupKey = rec.Aliases[0]
	}

	var existing *model.PriceRecord
	var err error
	if rec.NormalizedName != "" {
		existing, err = s.scanMaterial(s.pool.QueryRow(ctx, sqlFindByNormalized, rec.NormalizedName))
		if err != nil {
			return nil, err
		}
	}
	if existing == nil {
		existing, err = s.scanMaterial(s.pool.QueryRow(ctx, sqlFindByName, lookupKey))
		if err != nil {
			return nil, err
		}
	}
	if existing == nil {
		existing, err = s.scanMaterial(s.pool.QueryRow(ctx, sqlFindByAlias, lookupKey))
		if err != nil {
			return nil, err
		}
	}

	if existing != nil {
		merged := *existing
		merged.NormalizedName = rec.NormalizedName
		merged.PriceMin = rec.PriceMin
		merged.PriceMax = rec.PriceMax
		merged.PriceAvg = rec.PriceAvg
		merged.PriceMedian = rec.PriceMedian
		merged.SampleSize = rec.SampleSize
		merged.UpdatedAt = rec.UpdatedAt
		merged.RatingAvg = rec.RatingAvg
		merged.RatingSamples = rec.RatingSamples
		merged.CountSoldTotal = rec.CountSoldTotal
		merged.SellerLocation = rec.SellerLocation
		merged.SellerTier = rec.SellerTier
		merged.SearchQuery = rec.SearchQuery
		merged.ProductURL = rec.ProductURL
		merged.Aliases = mergeAliases(existing.Aliases, rec.Aliases)

		_, err = s.pool.Exec(ctx,
			`UPDATE materials SET normalized_name = $1, price_min = $2, price_max = $3,
			 price_avg = $4, price_median = $5, price_sample_size = $6, price_updated_at = $7,
			 rating_avg = $8, rating_sample_size = $9, count_sold_total = $10,
			 seller_location = $11, seller_tier = $12, search_query = $13, product_url = $14,
			 aliases = $15
			 WHERE id = $16`,
			merged.NormalizedName, merged.PriceMin, merged.PriceMax, merged.PriceAvg,
			merged.PriceMedian, merged.SampleSize, merged.UpdatedAt, merged.RatingAvg,
			merged.RatingSamples, merged.CountSoldTotal, merged.SellerLocation,
			string(merged.SellerTier), merged.SearchQuery, merged.ProductURL,
			merged.Aliases, merged.ID,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: update material %s", merged.ID)
		}
		return &merged, nil
	}

	rec.ID = uuid.New().String()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO materials (id, material_code, normalized_name, name_id, name_en,
		 category, unit, price_min, price_max, price_avg, price_median, price_sample_size,
		 price_updated_at, rating_avg, rating_sample_size, count_sold_total,
		 seller_location, seller_tier, search_query, product_url, aliases)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		rec.ID, rec.MaterialCode, rec.NormalizedName, rec.NameID, rec.NameEN,
		rec.Category, rec.Unit, rec.PriceMin, rec.PriceMax, rec.PriceAvg, rec.PriceMedian,
		rec.SampleSize, rec.UpdatedAt, rec.RatingAvg, rec.RatingSamples, rec.CountSoldTotal,
		rec.SellerLocation, string(rec.SellerTier), rec.SearchQuery, rec.ProductURL, rec.Aliases,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert material")
	}
	return rec, nil
}

func (s *PostgresStore) SaveProject(ctx context.Context, p *model.Project) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	bomJSON, err := json.Marshal(p.BOM)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal bom")
	}
	var progressJSON []byte
	if p.Progress != nil {
		if progressJSON, err = json.Marshal(p.Progress); err != nil {
			return eris.Wrap(err, "postgres: marshal progress")
		}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO projects (id, status, project_type, description, location, bom,
		 material_total, labor_total, grand_total, progress, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET status = $2, bom = $6, material_total = $7,
		 labor_total = $8, grand_total = $9, progress = $10, updated_at = $12`,
		p.ID, string(p.Status), p.ProjectType, p.Description, p.Location, bomJSON,
		p.MaterialTotal, p.LaborTotal, p.GrandTotal, progressJSON, p.CreatedAt, p.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: save project %s", p.ID)
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	var status string
	var bomJSON, progressJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, status, project_type, description, location, bom,
		 material_total, labor_total, grand_total, progress, created_at, updated_at
		 FROM projects WHERE id = $1`,
		id,
	).Scan(&p.ID, &status, &p.ProjectType, &p.Description, &p.Location, &bomJSON,
		&p.MaterialTotal, &p.LaborTotal, &p.GrandTotal, &progressJSON, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get project %s", id)
	}

	p.Status = model.ProjectStatus(status)
	if err := json.Unmarshal(bomJSON, &p.BOM); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal bom")
	}
	if len(progressJSON) > 0 {
		p.Progress = &model.Progress{}
		if err := json.Unmarshal(progressJSON, p.Progress); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal progress")
		}
	}
	return &p, nil
}

func (s *PostgresStore) UpdateProjectStatus(ctx context.Context, id string, status model.ProjectStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update project status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("project not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) UpdateProjectProgress(ctx context.Context, id string, progress model.Progress) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal progress")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET progress = $1, updated_at = $2 WHERE id = $3`,
		progressJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update project progress %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("project not found: %s", id)
	}
	return nil
}

// scanMaterial scans one materials row, translating pgx.ErrNoRows to nil.
func (s *PostgresStore) scanMaterial(row pgx.Row) (*model.PriceRecord, error) {
	var rec model.PriceRecord
	var tier string
	var updatedAt *time.Time

	err := row.Scan(&rec.ID, &rec.MaterialCode, &rec.NormalizedName, &rec.NameID, &rec.NameEN,
		&rec.Category, &rec.Unit, &rec.PriceMin, &rec.PriceMax, &rec.PriceAvg, &rec.PriceMedian,
		&rec.SampleSize, &updatedAt, &rec.RatingAvg, &rec.RatingSamples, &rec.CountSoldTotal,
		&rec.SellerLocation, &tier, &rec.SearchQuery, &rec.ProductURL, &rec.Aliases)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: scan material")
	}

	rec.SellerTier = model.SellerTier(tier)
	if updatedAt != nil {
		rec.UpdatedAt = *updatedAt
	}
	return &rec, nil
}

func collectMaterials(rows pgx.Rows) ([]model.PriceRecord, error) {
	var out []model.PriceRecord
	for rows.Next() {
		var rec model.PriceRecord
		var tier string
		var updatedAt *time.Time
		if err := rows.Scan(&rec.ID, &rec.MaterialCode, &rec.NormalizedName, &rec.NameID, &rec.NameEN,
			&rec.Category, &rec.Unit, &rec.PriceMin, &rec.PriceMax, &rec.PriceAvg, &rec.PriceMedian,
			&rec.SampleSize, &updatedAt, &rec.RatingAvg, &rec.RatingSamples, &rec.CountSoldTotal,
			&rec.SellerLocation, &tier, &rec.SearchQuery, &rec.ProductURL, &rec.Aliases); err != nil {
			return nil, eris.Wrap(err, "postgres: scan material row")
		}
		rec.SellerTier = model.SellerTier(tier)
		if updatedAt != nil {
			rec.UpdatedAt = *updatedAt
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate materials")
}
