package domain

import (
	"fmt"
	"time"
)

// OptionCount is the fixed number of options every question carries.
const OptionCount = 4

// Question is a single multiple-choice question.
type Question struct {
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	CorrectOptionIndex int      `json:"correctOptionIndex"`
	Marks              float64  `json:"marks,omitempty"` // defaults to 1 if zero
	SolutionText       string   `json:"solutionText,omitempty"`
}

// Weight returns the marks awarded for a correct answer.
func (q Question) Weight() float64 {
	if q.Marks <= 0 {
		return 1
	}
	return q.Marks
}

// WellFormed reports whether the question can ever be answered correctly.
func (q Question) WellFormed() bool {
	return len(q.Options) == OptionCount && q.CorrectOptionIndex >= 0 && q.CorrectOptionIndex < OptionCount
}

// Section is a named group of questions in a sectional test.
type Section struct {
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// TestDefinition is a mock test or quiz. It is immutable once attempted against.
type TestDefinition struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	DurationSeconds    int        `json:"durationSeconds,omitempty"`
	PerQuestionSeconds int        `json:"perQuestionSeconds,omitempty"`
	HasSections        bool       `json:"hasSections"`
	Sections           []Section  `json:"sections,omitempty"`
	Questions          []Question `json:"questions,omitempty"`
	NegativeMark       float64    `json:"negativeMark,omitempty"`
	Shuffle            bool       `json:"shuffle,omitempty"`
}

// Groups returns the questions grouped the way answers are shaped.
// A flat test is a single unnamed group.
func (d TestDefinition) Groups() []Section {
	if d.HasSections {
		return d.Sections
	}
	return []Section{{Questions: d.Questions}}
}

// SectionName is the display name of section i. Unnamed sections are
// numbered from 1. Flat tests have no section names.
func (d TestDefinition) SectionName(i int) string {
	if !d.HasSections || i < 0 || i >= len(d.Sections) {
		return ""
	}
	if name := d.Sections[i].Name; name != "" {
		return name
	}
	return fmt.Sprintf("Section %d", i+1)
}

// QuestionCount is the total number of questions across all groups.
func (d TestDefinition) QuestionCount() int {
	n := 0
	for _, g := range d.Groups() {
		n += len(g.Questions)
	}
	return n
}

// PlannedDurationSeconds resolves the whole-test timer, falling back to the per-question model.
func (d TestDefinition) PlannedDurationSeconds() int {
	if d.DurationSeconds > 0 {
		return d.DurationSeconds
	}
	if d.PerQuestionSeconds > 0 {
		return d.PerQuestionSeconds * d.QuestionCount()
	}
	return 0
}

// Question returns the question stored at pos, if any.
func (d TestDefinition) Question(pos Position) (Question, bool) {
	groups := d.Groups()
	if pos.SectionIndex < 0 || pos.SectionIndex >= len(groups) {
		return Question{}, false
	}
	qs := groups[pos.SectionIndex].Questions
	if pos.QuestionIndex < 0 || pos.QuestionIndex >= len(qs) {
		return Question{}, false
	}
	return qs[pos.QuestionIndex], true
}

// Position addresses a question. Flat tests always use SectionIndex 0.
type Position struct {
	SectionIndex  int `json:"sectionIndex"`
	QuestionIndex int `json:"questionIndex"`
}

// Status is the palette state of a question within a session.
type Status string

const (
	StatusNotVisited        Status = "not_visited"
	StatusNotAnswered       Status = "not_answered"
	StatusAnswered          Status = "answered"
	StatusMarked            Status = "marked"
	StatusAnsweredAndMarked Status = "answered_and_marked"
)

// Answered reports whether the status carries a selected option.
func (s Status) Answered() bool {
	return s == StatusAnswered || s == StatusAnsweredAndMarked
}

// Marked reports whether the status carries the review mark.
func (s Status) Marked() bool {
	return s == StatusMarked || s == StatusAnsweredAndMarked
}

// StatusOf builds the status for an answered/marked combination.
func StatusOf(answered, marked bool) Status {
	switch {
	case answered && marked:
		return StatusAnsweredAndMarked
	case answered:
		return StatusAnswered
	case marked:
		return StatusMarked
	default:
		return StatusNotAnswered
	}
}

// SectionScore is the per-section breakdown of a scored attempt.
type SectionScore struct {
	Name          string  `json:"name"`
	Score         float64 `json:"score"`
	Marks         float64 `json:"marks"`
	QuestionCount int     `json:"questionCount"`
	CorrectCount  int     `json:"correctCount"`
	WrongCount    int     `json:"wrongCount"`
	SkippedCount  int     `json:"skippedCount"`
}

// ScoreResult is the outcome of scoring a set of answers against a definition.
type ScoreResult struct {
	TotalScore     float64        `json:"totalScore"`
	TotalMarks     float64        `json:"totalMarks"`
	TotalQuestions int            `json:"totalQuestions"`
	CorrectCount   int            `json:"correctCount"`
	WrongCount     int            `json:"wrongCount"`
	SkippedCount   int            `json:"skippedCount"`
	Sections       []SectionScore `json:"sections"`
}

// AttemptRecord is the immutable, stored result of one submission.
type AttemptRecord struct {
	ID               string         `json:"id"`
	UserID           string         `json:"userId"`
	Username         string         `json:"username"`
	TestID           string         `json:"testId"`
	TestTitle        string         `json:"testTitle"`
	HasSections      bool           `json:"hasSections"`
	Answers          Answers        `json:"answers"`
	SectionScores    []SectionScore `json:"sectionScores"`
	TotalScore       float64        `json:"totalScore"`
	TotalMarks       float64        `json:"totalMarks"`
	TotalQuestions   int            `json:"totalQuestions"`
	CorrectCount     int            `json:"correctCount"`
	WrongCount       int            `json:"wrongCount"`
	SkippedCount     int            `json:"skippedCount"`
	TimeTakenSeconds int            `json:"timeTakenSeconds"`
	SubmittedAt      time.Time      `json:"submittedAt"`
	AutoSubmitted    bool           `json:"autoSubmitted"`
}

// TimeTaken derives the time spent from the remaining seconds at submission.
func TimeTaken(plannedSeconds, remainingSeconds int) int {
	taken := plannedSeconds - remainingSeconds
	if taken < 0 {
		return 0
	}
	if taken > plannedSeconds {
		return plannedSeconds
	}
	return taken
}

// LeaderboardEntry is one ranked attempt for a test.
type LeaderboardEntry struct {
	Rank             int       `json:"rank"`
	AttemptID        string    `json:"attemptId"`
	UserID           string    `json:"userId"`
	Username         string    `json:"username"`
	TotalScore       float64   `json:"totalScore"`
	TotalMarks       float64   `json:"totalMarks"`
	TimeTakenSeconds int       `json:"timeTakenSeconds"`
	SubmittedAt      time.Time `json:"submittedAt"`
}

// Leaderboard captures the ordered ranking for a test.
type Leaderboard struct {
	TestID  string             `json:"testId"`
	Entries []LeaderboardEntry `json:"entries"`
}

// EntryFromRecord projects a stored attempt into a leaderboard row.
func EntryFromRecord(rank int, r AttemptRecord) LeaderboardEntry {
	return LeaderboardEntry{
		Rank:             rank,
		AttemptID:        r.ID,
		UserID:           r.UserID,
		Username:         r.Username,
		TotalScore:       r.TotalScore,
		TotalMarks:       r.TotalMarks,
		TimeTakenSeconds: r.TimeTakenSeconds,
		SubmittedAt:      r.SubmittedAt,
	}
}
