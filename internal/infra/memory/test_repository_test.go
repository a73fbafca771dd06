package memory

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mocktest-service/internal/domain"
)

func TestTestRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		TestLoader: NewStaticTestLoader(map[string]domain.TestDefinition{
			"test-1": sampleTest(),
		}),
	}
	repo := NewTestRepository(loader, time.Minute)

	if _, err := repo.GetTest(context.Background(), "test-1"); err != nil {
		t.Fatalf("get test: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetTest(context.Background(), "test-1"); err != nil {
		t.Fatalf("get test 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestTestRepositoryExpires(t *testing.T) {
	loader := &countingLoader{
		TestLoader: NewStaticTestLoader(map[string]domain.TestDefinition{
			"test-1": sampleTest(),
		}),
	}
	repo := NewTestRepository(loader, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	_, _ = repo.GetTest(context.Background(), "test-1")
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetTest(context.Background(), "test-1")
	if loader.calls != 2 {
		t.Fatalf("expected reload after expiry, loader calls %d", loader.calls)
	}
}

func TestTestRepositoryNotFound(t *testing.T) {
	repo := NewTestRepository(NewStaticTestLoader(nil), time.Minute)
	if _, err := repo.GetTest(context.Background(), "missing"); !errors.Is(err, domain.ErrDefinitionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFileTestLoader(t *testing.T) {
	dir := t.TempDir()
	data, _ := json.Marshal(sampleTest())
	if err := os.WriteFile(filepath.Join(dir, "test-1.json"), data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	bad := sampleTest()
	bad.ID = "bad"
	bad.Questions[0].Options = []string{"only"}
	data, _ = json.Marshal(bad)
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	loader := NewFileTestLoader(dir)
	def, err := loader.LoadTest(context.Background(), "test-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if def.QuestionCount() != 1 {
		t.Fatalf("expected 1 question, got %d", def.QuestionCount())
	}
	if _, err := loader.LoadTest(context.Background(), "missing"); !errors.Is(err, domain.ErrDefinitionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := loader.LoadTest(context.Background(), "../test-1"); !errors.Is(err, domain.ErrDefinitionNotFound) {
		t.Fatalf("expected path escape to be rejected, got %v", err)
	}
	if _, err := loader.LoadTest(context.Background(), "bad"); !errors.Is(err, domain.ErrMalformedDefinition) {
		t.Fatalf("expected malformed definition, got %v", err)
	}
}

type countingLoader struct {
	TestLoader
	calls int
}

func (l *countingLoader) LoadTest(ctx context.Context, testID string) (domain.TestDefinition, error) {
	l.calls++
	return l.TestLoader.LoadTest(ctx, testID)
}

func sampleTest() domain.TestDefinition {
	return domain.TestDefinition{
		ID:              "test-1",
		Title:           "Arithmetic",
		DurationSeconds: 600,
		Questions: []domain.Question{
			{
				Text:               "What is 2 + 2?",
				Options:            []string{"3", "4", "5", "6"},
				CorrectOptionIndex: 1,
			},
		},
	}
}
