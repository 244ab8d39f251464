package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/cassidypignatello/bangun/internal/model"
	"github.com/cassidypignatello/bangun/internal/textnorm"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs the CLI's
// offline mode; aliases are stored as a JSON array.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS materials (
	id                 TEXT PRIMARY KEY,
	material_code      TEXT NOT NULL UNIQUE,
	normalized_name    TEXT NOT NULL DEFAULT '',
	name_id            TEXT NOT NULL,
	name_en            TEXT NOT NULL DEFAULT '',
	category           TEXT NOT NULL DEFAULT 'dynamic',
	unit               TEXT NOT NULL DEFAULT 'pcs',
	price_min          INTEGER NOT NULL DEFAULT 0,
	price_max          INTEGER NOT NULL DEFAULT 0,
	price_avg          REAL NOT NULL DEFAULT 0,
	price_median       INTEGER NOT NULL DEFAULT 0,
	price_sample_size  INTEGER NOT NULL DEFAULT 0,
	price_updated_at   DATETIME,
	rating_avg         REAL NOT NULL DEFAULT 0,
	rating_sample_size INTEGER NOT NULL DEFAULT 0,
	count_sold_total   INTEGER NOT NULL DEFAULT 0,
	seller_location    TEXT NOT NULL DEFAULT '',
	seller_tier        TEXT NOT NULL DEFAULT '',
	search_query       TEXT NOT NULL DEFAULT '',
	product_url        TEXT NOT NULL DEFAULT '',
	aliases            TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_materials_normalized_name ON materials(normalized_name);
CREATE INDEX IF NOT EXISTS idx_materials_price_updated_at ON materials(price_updated_at);

CREATE TABLE IF NOT EXISTS projects (
	id             TEXT PRIMARY KEY,
	status         TEXT NOT NULL DEFAULT 'draft',
	project_type   TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	location       TEXT NOT NULL DEFAULT '',
	bom            TEXT NOT NULL DEFAULT '[]',
	material_total INTEGER NOT NULL DEFAULT 0,
	labor_total    INTEGER NOT NULL DEFAULT 0,
	grand_total    INTEGER NOT NULL DEFAULT 0,
	progress       TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteMaterialColumns = `id, material_code, normalized_name, name_id, name_en, category, unit,
	price_min, price_max, price_avg, price_median, price_sample_size, price_updated_at,
	rating_avg, rating_sample_size, count_sold_total, seller_location, seller_tier,
	search_query, product_url, aliases`

func (s *SQLiteStore) FindPriceRecord(ctx context.Context, materialName string) (*model.PriceRecord, error) {
	canonical := textnorm.Normalize(materialName)
	legacy := strings.ToLower(strings.TrimSpace(materialName))

	type step struct {
		sql string
		arg string
	}
	ladder := []step{}
	if canonical != "" {
		ladder = append(ladder, step{
			`SELECT ` + sqliteMaterialColumns + ` FROM materials WHERE normalized_name = ? LIMIT 1`,
			canonical,
		})
	}
	ladder = append(ladder,
		step{`SELECT ` + sqliteMaterialColumns + ` FROM materials WHERE lower(name_id) = ? OR lower(name_en) = ? LIMIT 1`, legacy},
		step{`SELECT ` + sqliteMaterialColumns + ` FROM materials
			WHERE EXISTS (SELECT 1 FROM json_each(materials.aliases) WHERE json_each.value = ?) LIMIT 1`, legacy},
		step{`SELECT ` + sqliteMaterialColumns + ` FROM materials
			WHERE lower(name_id) LIKE '%' || ? || '%' OR lower(name_en) LIKE '%' || ? || '%' LIMIT 1`, legacy},
	)

	for _, st := range ladder {
		args := []any{st.arg}
		if strings.Count(st.sql, "?") == 2 {
			args = append(args, st.arg)
		}
		rec, err := scanSQLiteMaterial(s.db.QueryRowContext(ctx, st.sql, args...))
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, nil
}

func (s *SQLiteStore) SearchMaterials(ctx context.Context, query string, limit int) ([]model.PriceRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	q := strings.ToLower(strings.TrimSpace(query))
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteMaterialColumns+` FROM materials
		 WHERE lower(name_id) LIKE '%' || ? || '%' OR lower(name_en) LIKE '%' || ? || '%'
		 ORDER BY price_updated_at DESC LIMIT ?`,
		q, q, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search materials")
	}
	defer rows.Close()
	return collectSQLiteMaterials(rows)
}

func (s *SQLiteStore) StaleMaterials(ctx context.Context, maxAge time.Duration, limit int) ([]model.PriceRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	cutoff := time.Now().UTC().Add(-maxAge)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteMaterialColumns+` FROM materials
		 WHERE price_updated_at IS NULL OR price_updated_at < ?
		 ORDER BY price_updated_at ASC LIMIT ?`,
		cutoff, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stale materials")
	}
	defer rows.Close()
	return collectSQLiteMaterials(rows)
}

func (s *SQLiteStore) UpsertPriceRecord(ctx context.Context, rec *model.PriceRecord) (*model.PriceRecord, error) {
	lookupKey := ""
	if len(rec.Aliases) > 0 {
		lookupKey = rec.Aliases[0]
	}

	var existing *model.PriceRecord
	var err error
	if rec.NormalizedName != "" {
		existing, err = scanSQLiteMaterial(s.db.QueryRowContext(ctx,
			`SELECT `+sqliteMaterialColumns+` FROM materials WHERE normalized_name = ? LIMIT 1`,
			rec.NormalizedName,
		))
		if err != nil {
			return nil, err
		}
	}
	if existing == nil {
		existing, err = scanSQLiteMaterial(s.db.QueryRowContext(ctx,
			`SELECT `+sqliteMaterialColumns+` FROM materials WHERE lower(name_id) = ? OR lower(name_en) = ? LIMIT 1`,
			lookupKey, lookupKey,
		))
		if err != nil {
			return nil, err
		}
	}
	if existing == nil {
		existing, err = scanSQLiteMaterial(s.db.QueryRowContext(ctx,
			`SELECT `+sqliteMaterialColumns+` FROM materials
			 WHERE EXISTS (SELECT 1 FROM json_each(materials.aliases) WHERE json_each.value = ?) LIMIT 1`,
			lookupKey,
		))
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

		aliasJSON, err := json.Marshal(merged.Aliases)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: marshal aliases")
		}
		res, err := s.db.ExecContext(ctx,
			`UPDATE materials SET normalized_name = ?, price_min = ?, price_max = ?,
			 price_avg = ?, price_median = ?, price_sample_size = ?, price_updated_at = ?,
			 rating_avg = ?, rating_sample_size = ?, count_sold_total = ?,
			 seller_location = ?, seller_tier = ?, search_query = ?, product_url = ?, aliases = ?
			 WHERE id = ?`,
			merged.NormalizedName, merged.PriceMin, merged.PriceMax, merged.PriceAvg,
			merged.PriceMedian, merged.SampleSize, merged.UpdatedAt, merged.RatingAvg,
			merged.RatingSamples, merged.CountSoldTotal, merged.SellerLocation,
			string(merged.SellerTier), merged.SearchQuery, merged.ProductURL,
			string(aliasJSON), merged.ID,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: update material %s", merged.ID)
		}
		if err := checkRowsAffected(res, "material", merged.ID); err != nil {
			return nil, err
		}
		return &merged, nil
	}

	rec.ID = uuid.New().String()
	aliasJSON, err := json.Marshal(rec.Aliases)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal aliases")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO materials (id, material_code, normalized_name, name_id, name_en,
		 category, unit, price_min, price_max, price_avg, price_median, price_sample_size,
		 price_updated_at, rating_avg, rating_sample_size, count_sold_total,
		 seller_location, seller_tier, search_query, product_url, aliases)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.MaterialCode, rec.NormalizedName, rec.NameID, rec.NameEN,
		rec.Category, rec.Unit, rec.PriceMin, rec.PriceMax, rec.PriceAvg, rec.PriceMedian,
		rec.SampleSize, rec.UpdatedAt, rec.RatingAvg, rec.RatingSamples, rec.CountSoldTotal,
		rec.SellerLocation, string(rec.SellerTier), rec.SearchQuery, rec.ProductURL,
		string(aliasJSON),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert material")
	}
	return rec, nil
}

func (s *SQLiteStore) SaveProject(ctx context.Context, p *model.Project) error {
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
		return eris.Wrap(err, "sqlite: marshal bom")
	}
	var progressJSON any
	if p.Progress != nil {
		data, err := json.Marshal(p.Progress)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal progress")
		}
		progressJSON = string(data)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO projects (id, status, project_type, description, location, bom,
		 material_total, labor_total, grand_total, progress, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET status = excluded.status, bom = excluded.bom,
		 material_total = excluded.material_total, labor_total = excluded.labor_total,
		 grand_total = excluded.grand_total, progress = excluded.progress,
		 updated_at = excluded.updated_at`,
		p.ID, string(p.Status), p.ProjectType, p.Description, p.Location, string(bomJSON),
		p.MaterialTotal, p.LaborTotal, p.GrandTotal, progressJSON, p.CreatedAt, p.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: save project %s", p.ID)
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	var status, bomJSON string
	var progressJSON sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, status, project_type, description, location, bom,
		 material_total, labor_total, grand_total, progress, created_at, updated_at
		 FROM projects WHERE id = ?`,
		id,
	).Scan(&p.ID, &status, &p.ProjectType, &p.Description, &p.Location, &bomJSON,
		&p.MaterialTotal, &p.LaborTotal, &p.GrandTotal, &progressJSON, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get project %s", id)
	}

	p.Status = model.ProjectStatus(status)
	if err := json.Unmarshal([]byte(bomJSON), &p.BOM); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal bom")
	}
	if progressJSON.Valid && progressJSON.String != "" {
		p.Progress = &model.Progress{}
		if err := json.Unmarshal([]byte(progressJSON.String), p.Progress); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal progress")
		}
	}
	return &p, nil
}

func (s *SQLiteStore) UpdateProjectStatus(ctx context.Context, id string, status model.ProjectStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update project status %s", id)
	}
	return checkRowsAffected(res, "project", id)
}

func (s *SQLiteStore) UpdateProjectProgress(ctx context.Context, id string, progress model.Progress) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal progress")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET progress = ?, updated_at = ? WHERE id = ?`,
		string(progressJSON), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update project progress %s", id)
	}
	return checkRowsAffected(res, "project", id)
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteMaterial(row scannable) (*model.PriceRecord, error) {
	var rec model.PriceRecord
	var tier, aliasJSON string
	var updatedAt sql.NullTime

	err := row.Scan(&rec.ID, &rec.MaterialCode, &rec.NormalizedName, &rec.NameID, &rec.NameEN,
		&rec.Category, &rec.Unit, &rec.PriceMin, &rec.PriceMax, &rec.PriceAvg, &rec.PriceMedian,
		&rec.SampleSize, &updatedAt, &rec.RatingAvg, &rec.RatingSamples, &rec.CountSoldTotal,
		&rec.SellerLocation, &tier, &rec.SearchQuery, &rec.ProductURL, &aliasJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan material")
	}

	rec.SellerTier = model.SellerTier(tier)
	if updatedAt.Valid {
		rec.UpdatedAt = updatedAt.Time
	}
	if aliasJSON != "" {
		if err := json.Unmarshal([]byte(aliasJSON), &rec.Aliases); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal aliases")
		}
	}
	return &rec, nil
}

func collectSQLiteMaterials(rows *sql.Rows) ([]model.PriceRecord, error) {
	var out []model.PriceRecord
	for rows.Next() {
		rec, err := scanSQLiteMaterial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate materials")
}
