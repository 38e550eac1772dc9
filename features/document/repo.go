package document

import (
	"context"
	"database/sql"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Exists(ctx context.Context, name string, byteSize int) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM ingestion_records WHERE document_name = $1 AND byte_size = $2)`
	err := r.db.QueryRowContext(ctx, query, name, byteSize).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Record inserts a ledger entry. A concurrent duplicate insert is absorbed
// by the unique constraint.
func (r *PostgresRepo) Record(ctx context.Context, doc *Document) error {
	query := `INSERT INTO ingestion_records (document_name, byte_size, total_pages, segment_count, ingested_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (document_name, byte_size) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query,
		doc.Name, doc.ByteSize, doc.TotalPages, doc.SegmentCount, doc.IngestedAt)
	return err
}

func (r *PostgresRepo) List(ctx context.Context) ([]Document, error) {
	query := `SELECT document_name, byte_size, total_pages, segment_count, ingested_at FROM ingestion_records ORDER BY ingested_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.Name, &d.ByteSize, &d.TotalPages, &d.SegmentCount, &d.IngestedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Delete removes every ledger entry for the document name, across sizes.
func (r *PostgresRepo) Delete(ctx context.Context, name string) error {
	query := `DELETE FROM ingestion_records WHERE document_name = $1`
	_, err := r.db.ExecContext(ctx, query, name)
	return err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(DISTINCT document_name) FROM ingestion_records`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
