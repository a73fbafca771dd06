package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"mocktest-service/internal/domain"
)

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts,alias:a"`

	ID               string                `bun:"id,pk,type:uuid"`
	UserID           string                `bun:"user_id,notnull"`
	Username         string                `bun:"username,notnull"`
	TestID           string                `bun:"test_id,notnull"`
	TestTitle        string                `bun:"test_title,notnull"`
	HasSections      bool                  `bun:"has_sections,notnull"`
	Answers          domain.Answers        `bun:"answers,type:jsonb,notnull"`
	SectionScores    []domain.SectionScore `bun:"section_scores,type:jsonb"`
	TotalScore       float64               `bun:"total_score,notnull"`
	TotalMarks       float64               `bun:"total_marks,notnull"`
	TotalQuestions   int                   `bun:"total_questions,notnull"`
	CorrectCount     int                   `bun:"correct_count,notnull"`
	WrongCount       int                   `bun:"wrong_count,notnull"`
	SkippedCount     int                   `bun:"skipped_count,notnull"`
	TimeTakenSeconds int                   `bun:"time_taken_seconds,notnull"`
	SubmittedAt      time.Time             `bun:"submitted_at,notnull"`
	AutoSubmitted    bool                  `bun:"auto_submitted,notnull"`
}

func rowFromRecord(r domain.AttemptRecord) *attemptRow {
	return &attemptRow{
		ID:               r.ID,
		UserID:           r.UserID,
		Username:         r.Username,
		TestID:           r.TestID,
		TestTitle:        r.TestTitle,
		HasSections:      r.HasSections,
		Answers:          r.Answers,
		SectionScores:    r.SectionScores,
		TotalScore:       r.TotalScore,
		TotalMarks:       r.TotalMarks,
		TotalQuestions:   r.TotalQuestions,
		CorrectCount:     r.CorrectCount,
		WrongCount:       r.WrongCount,
		SkippedCount:     r.SkippedCount,
		TimeTakenSeconds: r.TimeTakenSeconds,
		SubmittedAt:      r.SubmittedAt.UTC(),
		AutoSubmitted:    r.AutoSubmitted,
	}
}

func (row *attemptRow) record() domain.AttemptRecord {
	return domain.AttemptRecord{
		ID:               row.ID,
		UserID:           row.UserID,
		Username:         row.Username,
		TestID:           row.TestID,
		TestTitle:        row.TestTitle,
		HasSections:      row.HasSections,
		Answers:          row.Answers,
		SectionScores:    row.SectionScores,
		TotalScore:       row.TotalScore,
		TotalMarks:       row.TotalMarks,
		TotalQuestions:   row.TotalQuestions,
		CorrectCount:     row.CorrectCount,
		WrongCount:       row.WrongCount,
		SkippedCount:     row.SkippedCount,
		TimeTakenSeconds: row.TimeTakenSeconds,
		SubmittedAt:      row.SubmittedAt,
		AutoSubmitted:    row.AutoSubmitted,
	}
}

// AttemptStore persists submitted attempts in the attempts table.
type AttemptStore struct {
	db *bun.DB
}

func NewAttemptStore(db *bun.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

func (s *AttemptStore) Create(ctx context.Context, record domain.AttemptRecord) (string, error) {
	record.ID = uuid.NewString()
	if _, err := s.db.NewInsert().Model(rowFromRecord(record)).Exec(ctx); err != nil {
		return "", fmt.Errorf("insert attempt: %w", err)
	}
	return record.ID, nil
}

func (s *AttemptStore) Get(ctx context.Context, attemptID string) (domain.AttemptRecord, error) {
	if _, err := uuid.Parse(attemptID); err != nil {
		return domain.AttemptRecord{}, domain.ErrAttemptNotFound
	}
	row := new(attemptRow)
	err := s.db.NewSelect().Model(row).Where("a.id = ?", attemptID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AttemptRecord{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.AttemptRecord{}, fmt.Errorf("get attempt: %w", err)
	}
	return row.record(), nil
}

func (s *AttemptStore) Leaderboard(ctx context.Context, testID string, limit int) ([]domain.AttemptRecord, error) {
	var rows []attemptRow
	q := s.db.NewSelect().
		Model(&rows).
		Where("a.test_id = ?", testID).
		OrderExpr("a.total_score DESC, a.time_taken_seconds ASC, a.submitted_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return records(rows), nil
}

func (s *AttemptStore) History(ctx context.Context, userID string, limit int) ([]domain.AttemptRecord, error) {
	var rows []attemptRow
	q := s.db.NewSelect().
		Model(&rows).
		Where("a.user_id = ?", userID).
		OrderExpr("a.submitted_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return records(rows), nil
}

func records(rows []attemptRow) []domain.AttemptRecord {
	out := make([]domain.AttemptRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].record())
	}
	return out
}
