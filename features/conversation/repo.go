package conversation

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const turnColumns = `id, session_id, question_normalized, question_raw, answer_text, page_numbers, rating, success, created_at`

func (r *PostgresRepo) Append(ctx context.Context, turn *Turn) error {
	query := `INSERT INTO turns (id, session_id, question_normalized, question_raw, answer_text, page_numbers, success, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query,
		turn.ID, turn.SessionID, turn.QuestionNormalized, turn.QuestionRaw,
		turn.AnswerText, pq.Array(turn.PageNumbers), turn.Success, turn.CreatedAt)
	return wrapNotReady(err)
}

// FindSuccessful returns the most recent successful turn with the exact
// normalized question, or nil when there is none.
func (r *PostgresRepo) FindSuccessful(ctx context.Context, normalizedQuestion string) (*Turn, error) {
	query := `SELECT ` + turnColumns + ` FROM turns WHERE question_normalized = $1 AND success = TRUE ORDER BY created_at DESC LIMIT 1`
	turn, err := r.scanOne(r.db.QueryRowContext(ctx, query, normalizedQuestion))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapNotReady(err)
	}
	return turn, nil
}

// RecentSuccessful returns up to limit successful turns in the session,
// oldest first.
func (r *PostgresRepo) RecentSuccessful(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	query := `SELECT ` + turnColumns + ` FROM turns WHERE session_id = $1 AND success = TRUE ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, wrapNotReady(err)
	}
	defer rows.Close()

	turns, err := r.scanAll(rows)
	if err != nil {
		return nil, err
	}
	// Query orders newest first to apply the limit; callers want
	// chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// UpdateRating is a no-op for unknown turn IDs.
func (r *PostgresRepo) UpdateRating(ctx context.Context, turnID string, rating int) error {
	query := `UPDATE turns SET rating = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, rating, turnID)
	return wrapNotReady(err)
}

func (r *PostgresRepo) ListBySession(ctx context.Context, sessionID string) ([]Turn, error) {
	query := `SELECT ` + turnColumns + ` FROM turns WHERE session_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, wrapNotReady(err)
	}
	defer rows.Close()
	return r.scanAll(rows)
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns`).Scan(&count)
	if err != nil {
		return 0, wrapNotReady(err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepo) scanOne(row rowScanner) (*Turn, error) {
	t := &Turn{}
	var rating sql.NullInt64
	var pages pq.Int64Array
	err := row.Scan(&t.ID, &t.SessionID, &t.QuestionNormalized, &t.QuestionRaw,
		&t.AnswerText, &pages, &rating, &t.Success, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.PageNumbers = make([]int, len(pages))
	for i, p := range pages {
		t.PageNumbers[i] = int(p)
	}
	if rating.Valid {
		v := int(rating.Int64)
		t.Rating = &v
	}
	return t, nil
}

func (r *PostgresRepo) scanAll(rows *sql.Rows) ([]Turn, error) {
	var turns []Turn
	for rows.Next() {
		t, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, *t)
	}
	return turns, rows.Err()
}

// wrapNotReady maps an undefined-table error to ErrStoreNotReady so the
// service can answer with the initializing response before migrations ran.
func wrapNotReady(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "42P01" {
		return ErrStoreNotReady
	}
	return err
}
