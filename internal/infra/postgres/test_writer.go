package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"mocktest-service/internal/domain"
)

type testRow struct {
	bun.BaseModel `bun:"table:tests,alias:t"`

	ID        string          `bun:"id,pk"`
	Title     string          `bun:"title,notnull"`
	Data      json.RawMessage `bun:"data,type:jsonb,notnull"`
	UpdatedAt time.Time       `bun:"updated_at,notnull"`
}

// TestWriter upserts validated definitions into the tests table.
type TestWriter struct {
	db *bun.DB
}

func NewTestWriter(db *bun.DB) *TestWriter {
	return &TestWriter{db: db}
}

func (w *TestWriter) Upsert(ctx context.Context, def domain.TestDefinition) error {
	if err := domain.Validate(def); err != nil {
		return err
	}
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal test: %w", err)
	}
	row := &testRow{
		ID:        def.ID,
		Title:     def.Title,
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	}
	_, err = w.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert test: %w", err)
	}
	return nil
}
