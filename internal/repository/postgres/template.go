package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/luminapress/comms-engine/internal/domain"
	"github.com/luminapress/comms-engine/internal/service/campaign"
)

// TemplateRepo stores message templates. The variable schema is jsonb.
type TemplateRepo struct{ db *sql.DB }

// NewTemplateRepo creates a Postgres-backed template repository.
func NewTemplateRepo(db *sql.DB) *TemplateRepo { return &TemplateRepo{db: db} }

const templateColumns = `id, name, channel, COALESCE(subject,''), body,
	variable_schema, created_at, updated_at`

func (r *TemplateRepo) GetTemplate(ctx context.Context, id string) (*domain.Template, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+templateColumns+`
		FROM templates
		WHERE id = $1
	`, id)
	return scanTemplate(row)
}

func (r *TemplateRepo) CreateTemplate(ctx context.Context, t *domain.Template) error {
	schema, err := json.Marshal(t.VariableSchema)
	if err != nil {
		return fmt.Errorf("encode variable_schema: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO templates
			(id, name, channel, subject, body, variable_schema, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4,''), $5, $6, $7, $8)
	`, t.ID, t.Name, t.Channel, t.Subject, t.Body, schema, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

func (r *TemplateRepo) ListTemplates(ctx context.Context, channel domain.Channel) ([]domain.Template, error) {
	q := "SELECT " + templateColumns + " FROM templates"
	args := []interface{}{}
	if channel != "" {
		q += " WHERE channel = $1"
		args = append(args, channel)
	}
	q += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []domain.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *TemplateRepo) DeleteTemplate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return requireRow(res, campaign.ErrTemplateNotFound)
}

func scanTemplate(row rowScanner) (*domain.Template, error) {
	t := &domain.Template{}
	var schema []byte
	err := row.Scan(&t.ID, &t.Name, &t.Channel, &t.Subject, &t.Body,
		&schema, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan template: %w", err)
	}
	if err := json.Unmarshal(schema, &t.VariableSchema); err != nil {
		return nil, fmt.Errorf("decode variable_schema: %w", err)
	}
	return t, nil
}
