package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"mocktest-service/internal/domain"
	"mocktest-service/internal/metrics"
	"mocktest-service/internal/scoring"
)

// TestRepository loads test definitions (from cache/backing store).
type TestRepository interface {
	GetTest(ctx context.Context, testID string) (domain.TestDefinition, error)
}

// SnapshotStore keeps serialized in-progress sessions, one per key.
type SnapshotStore interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// AttemptStore is the append-only store of submitted attempts.
type AttemptStore interface {
	Create(ctx context.Context, record domain.AttemptRecord) (string, error)
	Get(ctx context.Context, attemptID string) (domain.AttemptRecord, error)
	// Leaderboard returns attempts for a test by score desc, time taken asc, submission asc.
	Leaderboard(ctx context.Context, testID string, limit int) ([]domain.AttemptRecord, error)
	// History returns a user's attempts, newest first.
	History(ctx context.Context, userID string, limit int) ([]domain.AttemptRecord, error)
}

// SessionRegistry tracks live sessions (in-memory, Redis-marked, etc).
type SessionRegistry interface {
	// Put stores s unless a session with the same key exists; it returns the stored one.
	Put(s *Session) *Session
	Get(key string) (*Session, bool)
	// Delete removes s if it is still the registered session for its key.
	Delete(s *Session)
	// Touch marks s as still alive; called after every snapshot write.
	Touch(ctx context.Context, s *Session)
	Len() int
}

// Config tunes the attempt service.
type Config struct {
	// TickInterval is how often the countdown samples the wall clock; zero
	// disables the background timer.
	TickInterval time.Duration
	// PersistInterval is how often Active sessions are written to the snapshot store.
	PersistInterval time.Duration
	Scoring         scoring.Policy
	// Now is the wall clock; defaults to time.Now.
	Now func() time.Time
}

const (
	defaultLimit = 50
	maxLimit     = 200
)

// AttemptService contains the timed-attempt use cases.
type AttemptService struct {
	tests     TestRepository
	snapshots SnapshotStore
	attempts  AttemptStore
	sessions  SessionRegistry
	cfg       Config
	log       *zap.Logger
	metrics   *metrics.Metrics
}

// Dependencies groups the collaborators of AttemptService.
type Dependencies struct {
	Tests     TestRepository
	Snapshots SnapshotStore
	Attempts  AttemptStore
	Sessions  SessionRegistry
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

func NewAttemptService(deps Dependencies, cfg Config) *AttemptService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttemptService{
		tests:     deps.Tests,
		snapshots: deps.Snapshots,
		attempts:  deps.Attempts,
		sessions:  deps.Sessions,
		cfg:       cfg,
		log:       logger,
		metrics:   deps.Metrics,
	}
}

// Open loads or resumes the session of userID on testID.
//
// Every successful Open attaches one connection to the returned session and
// must be paired with Leave. Connections on the same (user, test) share the
// live session. A resumed session whose time has run out is submitted
// automatically before Open returns and is never activated.
// ErrDefinitionNotFound is terminal.
func (s *AttemptService) Open(ctx context.Context, userID, username, testID string) (*Session, error) {
	if live, ok := s.sessions.Get(domain.SnapshotKey(userID, testID)); ok && live.attach() {
		return live, nil
	}

	def, err := s.tests.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}

	session := s.restore(ctx, def, userID, username)
	log := s.log.With(zap.String("user", userID), zap.String("test", testID))

	if session.State() == StateResumed && session.expired() {
		log.Info("resumed session has no time left, submitting")
		if _, err := s.Submit(ctx, session, true); err == nil {
			return session, nil
		}
		// The snapshot is kept; the timer below retries the submission.
	}

	session.attach()
	for {
		winner := s.sessions.Put(session)
		if winner == session {
			break
		}
		if winner.attach() {
			return winner, nil
		}
		// A closed or finished session still registered; evict it and retry.
		s.sessions.Delete(winner)
	}

	if session.State() == StateFresh {
		s.persist(ctx, session)
	}
	s.metrics.SessionOpened(session.resumed)
	s.metrics.SetLiveSessions(s.sessions.Len())
	log.Info("attempt session opened", zap.Bool("resumed", session.resumed), zap.Int("secondsRemaining", session.SecondsRemaining()))

	if s.cfg.TickInterval > 0 {
		runCtx, cancel := context.WithCancel(context.Background())
		session.activate(cancel)
		go s.run(runCtx, session)
	} else {
		session.activate(nil)
	}
	return session, nil
}

// restore builds a resumed session from a valid snapshot, or a fresh one.
func (s *AttemptService) restore(ctx context.Context, def domain.TestDefinition, userID, username string) *Session {
	key := domain.SnapshotKey(userID, def.ID)
	data, ok, err := s.snapshots.Load(ctx, key)
	if err != nil {
		s.log.Warn("load snapshot failed, starting fresh", zap.String("key", key), zap.Error(err))
		return newFreshSession(def, userID, username, s.cfg.Now)
	}
	if !ok {
		return newFreshSession(def, userID, username, s.cfg.Now)
	}
	snap, err := domain.DecodeSnapshot(data, def)
	if err == nil && snap.UserID != userID {
		err = fmt.Errorf("%w: snapshot belongs to another user", domain.ErrInvalidSnapshot)
	}
	if err != nil {
		s.log.Warn("discarding snapshot", zap.String("key", key), zap.Error(err))
		return newFreshSession(def, userID, username, s.cfg.Now)
	}
	return newResumedSession(def, snap, username, s.cfg.Now)
}

// Session returns the live session of userID on testID.
func (s *AttemptService) Session(userID, testID string) (*Session, error) {
	session, ok := s.sessions.Get(domain.SnapshotKey(userID, testID))
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Subscribe returns a channel that receives the session view after every change.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *AttemptService) Subscribe(session *Session) (<-chan View, func(), error) {
	if session == nil {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Tick advances the session countdown by one step and reports whether an
// automatic submission is due.
func (s *AttemptService) Tick(session *Session) bool {
	return session.tick()
}

// Persist writes the session snapshot. Failures are logged and retried on the
// next call; the session keeps running in memory.
func (s *AttemptService) Persist(ctx context.Context, session *Session) {
	s.persist(ctx, session)
}

func (s *AttemptService) persist(ctx context.Context, session *Session) {
	session.ioMu.Lock()
	defer session.ioMu.Unlock()

	data, ok, err := session.snapshotData()
	if err == nil && ok {
		err = s.snapshots.Save(ctx, session.Key(), data)
	}
	if err != nil {
		s.metrics.PersistFailed()
		s.log.Warn("persist snapshot failed", zap.String("key", session.Key()), zap.Error(err))
		return
	}
	if ok {
		s.sessions.Touch(ctx, session)
	}
}

// Submit scores the final in-memory answers, writes the attempt record once
// and clears the snapshot. Concurrent calls on one session produce one record;
// the losers get ErrSubmissionInFlight or ErrAlreadySubmitted.
func (s *AttemptService) Submit(ctx context.Context, session *Session, auto bool) (domain.AttemptRecord, error) {
	sub, err := session.beginSubmit(auto)
	if err != nil {
		return domain.AttemptRecord{}, err
	}
	log := s.log.With(zap.String("user", session.userID), zap.String("test", session.def.ID), zap.Bool("auto", auto))

	result := scoring.Score(session.def, sub.answers, s.cfg.Scoring)
	record := domain.AttemptRecord{
		UserID:           session.userID,
		Username:         session.username,
		TestID:           session.def.ID,
		TestTitle:        session.def.Title,
		HasSections:      session.def.HasSections,
		Answers:          sub.answers,
		SectionScores:    result.Sections,
		TotalScore:       result.TotalScore,
		TotalMarks:       result.TotalMarks,
		TotalQuestions:   result.TotalQuestions,
		CorrectCount:     result.CorrectCount,
		WrongCount:       result.WrongCount,
		SkippedCount:     result.SkippedCount,
		TimeTakenSeconds: domain.TimeTaken(session.planned, sub.remaining),
		SubmittedAt:      s.cfg.Now().UTC(),
		AutoSubmitted:    auto,
	}

	id, err := s.attempts.Create(ctx, record)
	if err != nil {
		closed := session.failSubmit(auto)
		s.metrics.Submitted(auto, false)
		log.Error("submission failed", zap.Error(err))
		if closed {
			// Nobody is attached and the timer is gone: save and drop the
			// session so the next Open resumes it with a running timer.
			s.persist(ctx, session)
			s.sessions.Delete(session)
			s.metrics.SetLiveSessions(s.sessions.Len())
		}
		return domain.AttemptRecord{}, fmt.Errorf("%w: %w", domain.ErrSubmissionFailed, err)
	}
	record.ID = id

	session.ioMu.Lock()
	session.completeSubmit(record, result)
	if err := s.snapshots.Delete(ctx, session.Key()); err != nil {
		log.Warn("delete snapshot failed", zap.Error(err))
	}
	session.ioMu.Unlock()

	session.stopTimer()
	s.sessions.Delete(session)
	s.metrics.SetLiveSessions(s.sessions.Len())
	s.metrics.Submitted(auto, true)
	log.Info("attempt submitted", zap.String("attempt", id), zap.Float64("score", record.TotalScore), zap.Int("timeTaken", record.TimeTakenSeconds))
	return record, nil
}

// Leave detaches one connection without submitting. The snapshot is written
// each time; the timer stops and the session is dropped only when the last
// connection leaves. A session left mid-submission is dropped by Submit if
// that submission fails.
func (s *AttemptService) Leave(ctx context.Context, session *Session) {
	s.persist(ctx, session)
	last, submitting := session.detach()
	if !last {
		return
	}
	session.stopTimer()
	if !submitting {
		s.sessions.Delete(session)
		s.metrics.SetLiveSessions(s.sessions.Len())
	}
}

func (s *AttemptService) run(ctx context.Context, session *Session) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	persistEvery := s.cfg.PersistInterval
	if persistEvery <= 0 {
		persistEvery = 5 * time.Second
	}
	persistTicker := time.NewTicker(persistEvery)
	defer persistTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.Tick(session) {
				// Ticks keep running while the submission is in flight.
				go s.autoSubmit(ctx, session)
			}
		case <-persistTicker.C:
			s.persist(ctx, session)
		}
	}
}

func (s *AttemptService) autoSubmit(ctx context.Context, session *Session) {
	_, err := s.Submit(ctx, session, true)
	switch {
	case err == nil, errors.Is(err, domain.ErrSubmissionInFlight), errors.Is(err, domain.ErrAlreadySubmitted):
	default:
		s.log.Warn("auto-submit will be retried", zap.String("key", session.Key()), zap.Error(err))
	}
}

// Leaderboard ranks submitted attempts of a test.
func (s *AttemptService) Leaderboard(ctx context.Context, testID string, limit int) (domain.Leaderboard, error) {
	records, err := s.attempts.Leaderboard(ctx, testID, clampLimit(limit))
	if err != nil {
		return domain.Leaderboard{}, err
	}
	lb := domain.Leaderboard{TestID: testID, Entries: make([]domain.LeaderboardEntry, 0, len(records))}
	for i, r := range records {
		lb.Entries = append(lb.Entries, domain.EntryFromRecord(i+1, r))
	}
	return lb, nil
}

// History lists a user's attempts, newest first.
func (s *AttemptService) History(ctx context.Context, userID string, limit int) ([]domain.AttemptRecord, error) {
	return s.attempts.History(ctx, userID, clampLimit(limit))
}

// Review is a stored attempt with its answers re-graded against the definition.
type Review struct {
	Attempt    domain.AttemptRecord     `json:"attempt"`
	Recomputed *domain.ScoreResult      `json:"recomputed,omitempty"`
	Consistent bool                     `json:"consistent"`
	Questions  []scoring.QuestionReview `json:"questions,omitempty"`
}

// Review loads an attempt and recomputes its score. When the definition is no
// longer available the stored record is returned on its own.
func (s *AttemptService) Review(ctx context.Context, attemptID string) (Review, error) {
	record, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return Review{}, err
	}
	def, err := s.tests.GetTest(ctx, record.TestID)
	if errors.Is(err, domain.ErrDefinitionNotFound) {
		return Review{Attempt: record}, nil
	}
	if err != nil {
		return Review{}, err
	}
	result := scoring.Score(def, record.Answers, s.cfg.Scoring)
	return Review{
		Attempt:    record,
		Recomputed: &result,
		Consistent: result.TotalScore == record.TotalScore && result.TotalMarks == record.TotalMarks,
		Questions:  scoring.Review(def, record.Answers),
	}, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
