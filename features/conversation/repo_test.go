package conversation

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTurnRows(turns ...Turn) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "session_id", "question_normalized", "question_raw",
		"answer_text", "page_numbers", "rating", "success", "created_at",
	})
	for _, t := range turns {
		parts := make([]string, len(t.PageNumbers))
		for i, p := range t.PageNumbers {
			parts[i] = strconv.Itoa(p)
		}
		pages := "{" + strings.Join(parts, ",") + "}"
		var rating any
		if t.Rating != nil {
			rating = *t.Rating
		}
		rows.AddRow(t.ID, t.SessionID, t.QuestionNormalized, t.QuestionRaw,
			t.AnswerText, pages, rating, t.Success, t.CreatedAt)
	}
	return rows
}

func TestPostgresRepo_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	turn := &Turn{
		ID:                 "turn-1",
		SessionID:          "session-a",
		QuestionNormalized: "what is hand hygiene?",
		QuestionRaw:        "What is hand hygiene?",
		AnswerText:         "## Hand Hygiene\n\nWash hands.",
		PageNumbers:        []int{2, 5},
		Success:            true,
		CreatedAt:          time.Now().UTC(),
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO turns`)).
		WithArgs(turn.ID, turn.SessionID, turn.QuestionNormalized, turn.QuestionRaw,
			turn.AnswerText, pq.Array(turn.PageNumbers), turn.Success, turn.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPostgresRepo(db)
	assert.NoError(t, repo.Append(context.Background(), turn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_FindSuccessful(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	stored := Turn{
		ID:                 "turn-1",
		SessionID:          "session-a",
		QuestionNormalized: "what is jci?",
		QuestionRaw:        "What is JCI?",
		AnswerText:         "## JCI\n\nJoint Commission International.",
		PageNumbers:        []int{1},
		Success:            true,
		CreatedAt:          time.Now().UTC(),
	}

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE question_normalized = $1 AND success = TRUE ORDER BY created_at DESC LIMIT 1`)).
		WithArgs("what is jci?").
		WillReturnRows(newTurnRows(stored))

	repo := NewPostgresRepo(db)
	got, err := repo.FindSuccessful(context.Background(), "what is jci?")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, stored.AnswerText, got.AnswerText)
	assert.Equal(t, []int{1}, got.PageNumbers)
	assert.Nil(t, got.Rating)
}

func TestPostgresRepo_FindSuccessful_NoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).WithArgs("unknown").WillReturnRows(newTurnRows())

	repo := NewPostgresRepo(db)
	got, err := repo.FindSuccessful(context.Background(), "unknown")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostgresRepo_FindSuccessful_MissingTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).WithArgs("q").
		WillReturnError(&pq.Error{Code: "42P01", Message: `relation "turns" does not exist`})

	repo := NewPostgresRepo(db)
	_, err = repo.FindSuccessful(context.Background(), "q")
	assert.ErrorIs(t, err, ErrStoreNotReady)
}

func TestPostgresRepo_RecentSuccessful_ReversesToChronological(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	newest := Turn{ID: "t3", SessionID: "s", Success: true, CreatedAt: time.Now().UTC()}
	middle := Turn{ID: "t2", SessionID: "s", Success: true, CreatedAt: newest.CreatedAt.Add(-time.Minute)}
	oldest := Turn{ID: "t1", SessionID: "s", Success: true, CreatedAt: newest.CreatedAt.Add(-2 * time.Minute)}

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE session_id = $1 AND success = TRUE ORDER BY created_at DESC LIMIT $2`)).
		WithArgs("s", 3).
		WillReturnRows(newTurnRows(newest, middle, oldest))

	repo := NewPostgresRepo(db)
	got, err := repo.RecentSuccessful(context.Background(), "s", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "t1", got[0].ID)
	assert.Equal(t, "t3", got[2].ID)
}

func TestPostgresRepo_UpdateRating_UnknownIDIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE turns SET rating = $1 WHERE id = $2`)).
		WithArgs(1, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPostgresRepo(db)
	assert.NoError(t, repo.UpdateRating(context.Background(), "missing", 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_ListBySession(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rating := 1
	first := Turn{ID: "t1", SessionID: "s", Rating: &rating, Success: true, CreatedAt: time.Now().UTC()}
	second := Turn{ID: "t2", SessionID: "s", Success: false, CreatedAt: time.Now().UTC()}

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE session_id = $1 ORDER BY created_at ASC`)).
		WithArgs("s").
		WillReturnRows(newTurnRows(first, second))

	repo := NewPostgresRepo(db)
	got, err := repo.ListBySession(context.Background(), "s")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].Rating)
	assert.Equal(t, 1, *got[0].Rating)
	assert.False(t, got[1].Success)
}

func TestPostgresRepo_Count(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM turns`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	repo := NewPostgresRepo(db)
	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestWrapNotReady_PassthroughOtherErrors(t *testing.T) {
	cause := errors.New("connection refused")
	assert.Equal(t, cause, wrapNotReady(cause))
	assert.NoError(t, wrapNotReady(nil))
}
