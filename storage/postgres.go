package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"partyquiz/domain"
)

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(ctx context.Context, connString string) (*PostgresRepo, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &PostgresRepo{pool: pool}, nil
}

func (repo *PostgresRepo) Close() {
	repo.pool.Close()
}

type PackSummary struct {
	Id            string `json:"id"`
	Title         string `json:"title"`
	QuestionCount int    `json:"question_count"`
}

func (repo *PostgresRepo) ListPacks(ctx context.Context) ([]PackSummary, error) {
	query := `SELECT p.id, p.title, COUNT(q.id)
	          FROM packs p LEFT JOIN questions q ON q.pack_id = p.id
	          GROUP BY p.id, p.title
	          ORDER BY p.title`

	rows, err := repo.pool.Query(ctx, query)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	packs := make([]PackSummary, 0)
	for rows.Next() {
		var p PackSummary
		if err := rows.Scan(&p.Id, &p.Title, &p.QuestionCount); err != nil {
			return nil, classify(err)
		}
		packs = append(packs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}

	return packs, nil
}

// GetQuestionsForPack returns the pack's questions in play order. The
// jsonb columns (prompts, choices, accepted_answers) scan straight into
// the domain slices.
func (repo *PostgresRepo) GetQuestionsForPack(ctx context.Context, packID string) ([]domain.Question, error) {
	row := repo.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM packs WHERE id = $1)", packID)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return nil, classify(err)
	}
	if !exists {
		return nil, domain.ErrPackNotFound
	}

	query := `SELECT kind, prompts, choices, correct_choice, accepted_answers, hint
	          FROM questions
	          WHERE pack_id = $1
	          ORDER BY position`

	rows, err := repo.pool.Query(ctx, query, packID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	questions := make([]domain.Question, 0)
	for rows.Next() {
		var q domain.Question
		err := rows.Scan(&q.Kind, &q.Prompts, &q.Choices, &q.CorrectChoice, &q.AcceptedAnswers, &q.Hint)
		if err != nil {
			return nil, classify(err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}

	return questions, nil
}

// SaveGameResults appends one finished game's leaderboard to the history
// table, all rows or none.
func (repo *PostgresRepo) SaveGameResults(ctx context.Context, roomCode, packID string, results []domain.GameResult) error {
	tx, err := repo.pool.Begin(ctx)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO game_results(room_code, pack_id, player_id, player_name, score, rank)
	          VALUES($1, $2, $3, $4, $5, $6)`

	for _, res := range results {
		if _, err := tx.Exec(ctx, query, roomCode, packID, res.PlayerID, res.Name, res.Score, res.Rank); err != nil {
			return classify(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// "22P02" is invalid_text_representation: a pack id that is not a
		// valid uuid resolves like a missing pack instead of a 500.
		if pgErr.Code == "22P02" {
			return domain.ErrPackNotFound
		}
	}

	return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
}
