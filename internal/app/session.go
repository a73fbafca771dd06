package app

import (
	"encoding/json"
	"sync"
	"time"

	"mocktest-service/internal/domain"
	"mocktest-service/internal/ordering"
)

// State is the lifecycle stage of an attempt session.
type State string

const (
	StateLoading    State = "loading"
	StateFresh      State = "fresh"
	StateResumed    State = "resumed"
	StateActive     State = "active"
	StateSubmitting State = "submitting"
	StateSubmitted  State = "submitted"
)

const (
	noticeLastQuestion  = "You are on the last question. Submit when you are ready."
	noticeFirstQuestion = "You are on the first question."
	noticeTimeUp        = "Your time is up. Your answers are saved; submission will be retried."
	noticeSubmitFailed  = "Submission failed. Your answers are saved, please retry."
)

// QuestionView is a question as shown to the student, without its answer key.
type QuestionView struct {
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// View is the student-facing projection of a session.
type View struct {
	TestID           string              `json:"testId"`
	Title            string              `json:"title"`
	State            State               `json:"state"`
	Resumed          bool                `json:"resumed"`
	Position         domain.Position     `json:"currentPosition"`
	Number           int                 `json:"number"`
	TotalQuestions   int                 `json:"totalQuestions"`
	SectionName      string              `json:"sectionName,omitempty"`
	Question         *QuestionView       `json:"question,omitempty"`
	Selected         *int                `json:"selected"`
	Statuses         [][]domain.Status   `json:"statuses"`
	SecondsRemaining int                 `json:"secondsRemaining"`
	Notice           string              `json:"notice,omitempty"`
	AttemptID        string              `json:"attemptId,omitempty"`
	Result           *domain.ScoreResult `json:"result,omitempty"`
}

// submission is the frozen input of one submit call.
type submission struct {
	answers   domain.Answers
	remaining int
	auto      bool
}

// Session is the in-memory state of one student's attempt at one test.
// All mutations, timer ticks included, go through mu.
type Session struct {
	key      string
	userID   string
	username string
	def      domain.TestDefinition
	planned  int
	now      func() time.Time

	// ioMu orders snapshot writes against the delete that follows a successful submit.
	ioMu sync.Mutex

	mu          sync.Mutex
	state       State
	resumed     bool
	startedAt   time.Time
	seed        int64
	order       [][]int
	answers     domain.Answers
	statuses    [][]domain.Status
	pos         domain.Position
	remaining   int
	notice      string
	attemptID   string
	result      *domain.ScoreResult
	stop        func()
	subscribers map[chan View]struct{}

	// attached counts open connections; closed is set once the last one leaves.
	attached int
	closed   bool
}

func newSession(def domain.TestDefinition, userID, username string, now func() time.Time) *Session {
	return &Session{
		key:         domain.SnapshotKey(userID, def.ID),
		userID:      userID,
		username:    username,
		def:         def,
		planned:     def.PlannedDurationSeconds(),
		now:         now,
		state:       StateLoading,
		subscribers: make(map[chan View]struct{}),
	}
}

// newFreshSession starts a new attempt at now.
func newFreshSession(def domain.TestDefinition, userID, username string, now func() time.Time) *Session {
	s := newSession(def, userID, username, now)
	s.startedAt = now()
	s.seed = s.startedAt.UnixMilli()
	s.order = ordering.Sections(groupSizes(def), def.Shuffle, s.seed)
	s.answers = domain.NewAnswers(def)
	s.statuses = make([][]domain.Status, len(s.order))
	for i, group := range s.order {
		s.statuses[i] = make([]domain.Status, len(group))
		for j := range s.statuses[i] {
			s.statuses[i][j] = domain.StatusNotVisited
		}
	}
	s.remaining = s.planned
	s.pos, _ = s.firstPosition()
	s.visitLocked()
	s.state = StateFresh
	return s
}

// newResumedSession rebuilds a session from a validated snapshot. The remaining
// time is recomputed from the wall clock, never taken from the snapshot.
func newResumedSession(def domain.TestDefinition, snap domain.Snapshot, username string, now func() time.Time) *Session {
	s := newSession(def, snap.UserID, username, now)
	s.startedAt = time.UnixMilli(snap.StartedAt)
	s.seed = snap.Seed
	if s.seed == 0 {
		s.seed = snap.StartedAt
	}
	s.order = ordering.Sections(groupSizes(def), def.Shuffle, s.seed)
	s.answers = snap.Answers.Clone()
	s.statuses = make([][]domain.Status, len(snap.Statuses))
	for i, row := range snap.Statuses {
		s.statuses[i] = append([]domain.Status(nil), row...)
	}
	s.pos = snap.Position
	if !s.validPosition(s.pos) {
		s.pos, _ = s.firstPosition()
	}
	s.remaining = s.remainingAt(now())
	s.resumed = true
	s.state = StateResumed
	return s
}

func groupSizes(def domain.TestDefinition) []int {
	groups := def.Groups()
	sizes := make([]int, len(groups))
	for i, g := range groups {
		sizes[i] = len(g.Questions)
	}
	return sizes
}

// Key identifies the session and its snapshot.
func (s *Session) Key() string { return s.key }

// UserID returns the owning user.
func (s *Session) UserID() string { return s.userID }

// TestID returns the attempted test.
func (s *Session) TestID() string { return s.def.ID }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SecondsRemaining returns the countdown value.
func (s *Session) SecondsRemaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Order returns the display order of each group (display index -> storage index).
func (s *Session) Order() [][]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]int, len(s.order))
	for i, row := range s.order {
		out[i] = append([]int(nil), row...)
	}
	return out
}

// Answers returns a copy of the current answers.
func (s *Session) Answers() domain.Answers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers.Clone()
}

// View returns the current projection.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) remainingAt(now time.Time) int {
	elapsed := int(now.Sub(s.startedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := s.planned - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// activate moves a freshly loaded session into Active.
func (s *Session) activate(stop func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFresh || s.state == StateResumed {
		s.state = StateActive
	}
	s.stop = stop
	s.broadcastLocked()
}

// Select records option for the current question.
func (s *Session) Select(option int) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return View{}, err
	}
	if option < 0 || option >= domain.OptionCount {
		return View{}, domain.ErrInvalidOption
	}
	storage := s.storageLocked(s.pos)
	s.answers = s.answers.With(storage, domain.Choice(option))
	s.setStatusLocked(storage, domain.StatusOf(true, s.statusLocked(storage).Marked()))
	s.notice = ""
	return s.broadcastLocked(), nil
}

// Clear removes the answer of the current question, keeping any review mark.
func (s *Session) Clear() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return View{}, err
	}
	storage := s.storageLocked(s.pos)
	s.answers = s.answers.With(storage, nil)
	s.setStatusLocked(storage, domain.StatusOf(false, s.statusLocked(storage).Marked()))
	s.notice = ""
	return s.broadcastLocked(), nil
}

// ToggleMark flips the review mark of the current question. It does not advance.
func (s *Session) ToggleMark() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return View{}, err
	}
	storage := s.storageLocked(s.pos)
	_, answered := s.answers.Selected(storage)
	s.setStatusLocked(storage, domain.StatusOf(answered, !s.statusLocked(storage).Marked()))
	s.notice = ""
	return s.broadcastLocked(), nil
}

// Next moves forward, rolling into the next non-empty section. On the last
// question it stays put and sets a notice.
func (s *Session) Next() (View, error) {
	return s.step(1)
}

// Previous moves backward, rolling into the previous non-empty section.
func (s *Session) Previous() (View, error) {
	return s.step(-1)
}

func (s *Session) step(dir int) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return View{}, err
	}
	next, ok := s.neighbourLocked(dir)
	if !ok {
		if dir > 0 {
			s.notice = noticeLastQuestion
		} else {
			s.notice = noticeFirstQuestion
		}
		return s.broadcastLocked(), nil
	}
	s.pos = next
	s.notice = ""
	s.visitLocked()
	return s.broadcastLocked(), nil
}

// Jump moves to a display position, as from a question palette.
func (s *Session) Jump(pos domain.Position) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return View{}, err
	}
	if !s.validPosition(pos) {
		return View{}, domain.ErrInvalidPosition
	}
	s.pos = pos
	s.notice = ""
	s.visitLocked()
	return s.broadcastLocked(), nil
}

// tick samples the wall clock: the countdown drops by one for every second
// elapsed since the start, however often tick runs. It reports whether an
// automatic submission is due.
func (s *Session) tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive && s.state != StateSubmitting {
		return false
	}
	if wall := s.remainingAt(s.now()); wall < s.remaining {
		s.remaining = wall
		s.broadcastLocked()
	}
	return s.remaining == 0 && s.state == StateActive
}

// attach registers one more connection. It fails once the session is closed
// or submitted, and the caller must then load a new session.
func (s *Session) attach() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state == StateSubmitted {
		return false
	}
	s.attached++
	return true
}

// detach releases one connection. When it was the last one the session is
// closed and cannot be attached again.
func (s *Session) detach() (last, submitting bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached > 0 {
		s.attached--
	}
	if s.attached > 0 {
		return false, false
	}
	s.closed = true
	return true, s.state == StateSubmitting
}

func (s *Session) expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining == 0
}

// beginSubmit enters Submitting. A second caller while one is in flight gets
// ErrSubmissionInFlight and must not retry.
func (s *Session) beginSubmit(auto bool) (submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateSubmitted:
		return submission{}, domain.ErrAlreadySubmitted
	case StateSubmitting:
		return submission{}, domain.ErrSubmissionInFlight
	case StateActive, StateFresh, StateResumed:
	default:
		return submission{}, domain.ErrSessionNotActive
	}
	s.state = StateSubmitting
	s.notice = ""
	sub := submission{answers: s.answers.Clone(), remaining: s.remaining, auto: auto}
	s.broadcastLocked()
	return sub, nil
}

// failSubmit returns to Active so the student or the timer can retry. It
// reports whether every connection left while the submission was in flight.
func (s *Session) failSubmit(auto bool) (closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSubmitting {
		return s.closed
	}
	s.state = StateActive
	if auto || s.remaining == 0 {
		s.notice = noticeTimeUp
	} else {
		s.notice = noticeSubmitFailed
	}
	s.broadcastLocked()
	return s.closed
}

func (s *Session) completeSubmit(record domain.AttemptRecord, result domain.ScoreResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateSubmitted
	s.attemptID = record.ID
	s.result = &result
	s.notice = ""
	s.broadcastLocked()
}

// snapshotData serializes the session for the snapshot store. Only Active
// sessions are persisted; a session that is submitting or done never writes.
func (s *Session) snapshotData() ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive && s.state != StateFresh {
		return nil, false, nil
	}
	data, err := json.Marshal(domain.Snapshot{
		TestID:           s.def.ID,
		UserID:           s.userID,
		StartedAt:        s.startedAt.UnixMilli(),
		Seed:             s.seed,
		Answers:          s.answers,
		Statuses:         s.statuses,
		Position:         s.pos,
		SecondsRemaining: s.remaining,
	})
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// stopTimer cancels the background ticker, if any.
func (s *Session) stopTimer() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (s *Session) mutableLocked() error {
	if s.state != StateActive || s.remaining == 0 {
		return domain.ErrSessionNotActive
	}
	if !s.validPosition(s.pos) {
		return domain.ErrInvalidPosition
	}
	return nil
}

func (s *Session) validPosition(pos domain.Position) bool {
	if pos.SectionIndex < 0 || pos.SectionIndex >= len(s.order) {
		return false
	}
	return pos.QuestionIndex >= 0 && pos.QuestionIndex < len(s.order[pos.SectionIndex])
}

func (s *Session) firstPosition() (domain.Position, bool) {
	for si, group := range s.order {
		if len(group) > 0 {
			return domain.Position{SectionIndex: si}, true
		}
	}
	return domain.Position{}, false
}

func (s *Session) neighbourLocked(dir int) (domain.Position, bool) {
	next := s.pos
	next.QuestionIndex += dir
	if s.validPosition(next) {
		return next, true
	}
	for si := s.pos.SectionIndex + dir; si >= 0 && si < len(s.order); si += dir {
		if len(s.order[si]) == 0 {
			continue
		}
		if dir > 0 {
			return domain.Position{SectionIndex: si}, true
		}
		return domain.Position{SectionIndex: si, QuestionIndex: len(s.order[si]) - 1}, true
	}
	return domain.Position{}, false
}

// storageLocked maps a display position to where the question is stored.
func (s *Session) storageLocked(display domain.Position) domain.Position {
	return domain.Position{
		SectionIndex:  display.SectionIndex,
		QuestionIndex: s.order[display.SectionIndex][display.QuestionIndex],
	}
}

func (s *Session) statusLocked(storage domain.Position) domain.Status {
	return s.statuses[storage.SectionIndex][storage.QuestionIndex]
}

func (s *Session) setStatusLocked(storage domain.Position, status domain.Status) {
	row := append([]domain.Status(nil), s.statuses[storage.SectionIndex]...)
	row[storage.QuestionIndex] = status
	s.statuses[storage.SectionIndex] = row
}

func (s *Session) visitLocked() {
	if !s.validPosition(s.pos) {
		return
	}
	storage := s.storageLocked(s.pos)
	if s.statusLocked(storage) == domain.StatusNotVisited {
		s.setStatusLocked(storage, domain.StatusNotAnswered)
	}
}

func (s *Session) viewLocked() View {
	view := View{
		TestID:           s.def.ID,
		Title:            s.def.Title,
		State:            s.state,
		Resumed:          s.resumed,
		Position:         s.pos,
		TotalQuestions:   s.def.QuestionCount(),
		SecondsRemaining: s.remaining,
		Notice:           s.notice,
		AttemptID:        s.attemptID,
		Result:           s.result,
		Statuses:         make([][]domain.Status, len(s.order)),
	}
	for si, group := range s.order {
		row := make([]domain.Status, len(group))
		for di, qi := range group {
			row[di] = s.statuses[si][qi]
		}
		view.Statuses[si] = row
	}
	if !s.validPosition(s.pos) {
		return view
	}

	for si := 0; si < s.pos.SectionIndex; si++ {
		view.Number += len(s.order[si])
	}
	view.Number += s.pos.QuestionIndex + 1
	if s.def.HasSections {
		view.SectionName = s.def.SectionName(s.pos.SectionIndex)
	}
	storage := s.storageLocked(s.pos)
	if q, ok := s.def.Question(storage); ok {
		view.Question = &QuestionView{Text: q.Text, Options: q.Options}
	}
	if selected, ok := s.answers.Selected(storage); ok {
		view.Selected = domain.Choice(selected)
	}
	return view
}

// subscribe returns a channel of views, primed with the current one.
func (s *Session) subscribe() (<-chan View, func()) {
	ch := make(chan View, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	// ch is empty, so this cannot block.
	ch <- s.viewLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() View {
	view := s.viewLocked()
	for ch := range s.subscribers {
		select {
		case ch <- view:
		default:
			// Slow subscriber: drop its oldest pending view.
			select {
			case <-ch:
			default:
			}
			ch <- view
		}
	}
	return view
}
