package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/utils"
)

// PostgresStore keeps projects in two tables; file order is the stored
// position
type PostgresStore struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

// OpenPostgres connects through the pgx database/sql driver
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewPostgresStore(db), nil
}

// NewPostgresStore wraps an existing handle
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Close closes the underlying handle
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS preview_projects (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL DEFAULT '',
  updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS preview_project_files (
  project_id TEXT NOT NULL REFERENCES preview_projects(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  path TEXT NOT NULL,
  language TEXT NOT NULL DEFAULT '',
  content TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (project_id, position)
);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) List(ctx context.Context) ([]types.ProjectMetadata, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT p.id, p.title, p.updated_at, COUNT(f.position), COALESCE(SUM(OCTET_LENGTH(f.content)), 0)
FROM preview_projects p
LEFT JOIN preview_project_files f ON f.project_id = p.id
GROUP BY p.id, p.title, p.updated_at
ORDER BY p.updated_at DESC, p.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ProjectMetadata
	for rows.Next() {
		var m types.ProjectMetadata
		if err := rows.Scan(&m.ID, &m.Title, &m.UpdatedAt, &m.FileCount, &m.Bytes); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*types.Project, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	p := &types.Project{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, updated_at FROM preview_projects WHERE id = $1`,
		strings.TrimSpace(id)).Scan(&p.ID, &p.Title, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT path, language, content FROM preview_project_files WHERE project_id = $1 ORDER BY position`, p.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var f types.SourceFile
		var lang string
		if err := rows.Scan(&f.Path, &lang, &f.Content); err != nil {
			return nil, err
		}
		f.Language = types.Language(lang)
		if f.Language == "" {
			f.Language = types.LanguageFromPath(f.Path)
		}
		p.Files = append(p.Files, f)
	}
	return p, rows.Err()
}

func (s *PostgresStore) Put(ctx context.Context, project *types.Project) error {
	if err := utils.ValidateProject(project); err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
INSERT INTO preview_projects (id, title, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, updated_at = EXCLUDED.updated_at`,
		project.ID, project.Title, now); err != nil {
		return fmt.Errorf("failed to upsert project: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM preview_project_files WHERE project_id = $1`, project.ID); err != nil {
		return err
	}
	for i, f := range project.Files {
		lang := f.Language
		if lang == "" {
			lang = types.LanguageFromPath(f.Path)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO preview_project_files (project_id, position, path, language, content) VALUES ($1, $2, $3, $4, $5)`,
			project.ID, i, f.Path, string(lang), f.Content); err != nil {
			return fmt.Errorf("failed to insert %s: %w", f.Path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	project.UpdatedAt = now
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM preview_projects WHERE id = $1`, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
