package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"mocktest-service/internal/domain"
)

// AttemptStore keeps attempt records in memory. Records are never mutated.
type AttemptStore struct {
	mu      sync.RWMutex
	records map[string]domain.AttemptRecord
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{records: make(map[string]domain.AttemptRecord)}
}

func (s *AttemptStore) Create(_ context.Context, record domain.AttemptRecord) (string, error) {
	record.ID = uuid.NewString()
	record.Answers = record.Answers.Clone()
	record.SectionScores = append([]domain.SectionScore(nil), record.SectionScores...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record
	return record.ID, nil
}

func (s *AttemptStore) Get(_ context.Context, attemptID string) (domain.AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[attemptID]
	if !ok {
		return domain.AttemptRecord{}, domain.ErrAttemptNotFound
	}
	return record, nil
}

func (s *AttemptStore) Leaderboard(_ context.Context, testID string, limit int) ([]domain.AttemptRecord, error) {
	out := s.filter(func(r domain.AttemptRecord) bool { return r.TestID == testID })
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		if out[i].TimeTakenSeconds != out[j].TimeTakenSeconds {
			return out[i].TimeTakenSeconds < out[j].TimeTakenSeconds
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return truncate(out, limit), nil
}

func (s *AttemptStore) History(_ context.Context, userID string, limit int) ([]domain.AttemptRecord, error) {
	out := s.filter(func(r domain.AttemptRecord) bool { return r.UserID == userID })
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return truncate(out, limit), nil
}

// Len reports how many records were created.
func (s *AttemptStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *AttemptStore) filter(keep func(domain.AttemptRecord) bool) []domain.AttemptRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AttemptRecord, 0)
	for _, r := range s.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func truncate(records []domain.AttemptRecord, limit int) []domain.AttemptRecord {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}
