package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, doc *Document) error {
	diagnostics, err := json.Marshal(doc.Diagnostics)
	if err != nil {
		return fmt.Errorf("marshal diagnostics: %w", err)
	}
	entities, err := json.Marshal(doc.Entities)
	if err != nil {
		return fmt.Errorf("marshal entities: %w", err)
	}

	query := `INSERT INTO documents
		(filename, file_type, file_size, page_count, word_count, title, author, diagnostics, raw_text, summary, entities, user_id, thread_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`
	return r.db.QueryRowContext(ctx, query,
		doc.Filename, doc.FileType, doc.FileSize, doc.PageCount, doc.WordCount,
		doc.Title, doc.Author, diagnostics, doc.RawText, doc.Summary, entities,
		doc.UserID, doc.ThreadID,
	).Scan(&doc.ID)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Document, error) {
	doc := &Document{}
	var diagnostics, entities []byte

	query := `SELECT id, filename, file_type, file_size, page_count, word_count, title, author,
		diagnostics, raw_text, summary, entities, chunk_count, processing_ms, user_id, thread_id, created_at
		FROM documents WHERE id = $1 AND deleted_at IS NULL`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID, &doc.Filename, &doc.FileType, &doc.FileSize, &doc.PageCount, &doc.WordCount,
		&doc.Title, &doc.Author, &diagnostics, &doc.RawText, &doc.Summary, &entities,
		&doc.ChunkCount, &doc.ProcessingMS, &doc.UserID, &doc.ThreadID, &doc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(diagnostics) > 0 {
		if err := json.Unmarshal(diagnostics, &doc.Diagnostics); err != nil {
			return nil, fmt.Errorf("unmarshal diagnostics: %w", err)
		}
	}
	if len(entities) > 0 {
		if err := json.Unmarshal(entities, &doc.Entities); err != nil {
			return nil, fmt.Errorf("unmarshal entities: %w", err)
		}
	}
	return doc, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Document, error) {
	query := `SELECT id, filename, file_type, file_size, page_count, word_count, title, author,
		summary, chunk_count, processing_ms, user_id, thread_id, created_at
		FROM documents WHERE deleted_at IS NULL ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Filename, &d.FileType, &d.FileSize, &d.PageCount, &d.WordCount,
			&d.Title, &d.Author, &d.Summary, &d.ChunkCount, &d.ProcessingMS,
			&d.UserID, &d.ThreadID, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) UpdateIngestStats(ctx context.Context, id string, chunkCount int, processingMS int64) error {
	query := `UPDATE documents SET chunk_count = $1, processing_ms = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, chunkCount, processingMS, id)
	return err
}

func (r *PostgresRepo) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE documents SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM documents WHERE deleted_at IS NULL`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}
