package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// AnswersKind tags which shape an Answers value holds.
type AnswersKind string

const (
	FlatAnswersKind      AnswersKind = "flat"
	SectionalAnswersKind AnswersKind = "sectional"
)

// Answers is the selected option per question, shaped like the test definition:
// a single list for flat tests, one list per section for sectional tests.
// A nil entry means the question was skipped; 0 is the first option.
//
// Values are treated as immutable; With returns an updated copy.
type Answers struct {
	Kind     AnswersKind
	Flat     []*int
	Sections [][]*int
}

// Choice returns a selection of option i.
func Choice(i int) *int {
	return &i
}

// FlatAnswers builds a flat answer list.
func FlatAnswers(selected ...*int) Answers {
	return Answers{Kind: FlatAnswersKind, Flat: selected}
}

// SectionalAnswers builds per-section answer lists.
func SectionalAnswers(sections ...[]*int) Answers {
	return Answers{Kind: SectionalAnswersKind, Sections: sections}
}

// NewAnswers returns an all-skipped answer set matching the definition's shape.
func NewAnswers(def TestDefinition) Answers {
	if !def.HasSections {
		return FlatAnswers(make([]*int, len(def.Questions))...)
	}
	rows := make([][]*int, len(def.Sections))
	for i, s := range def.Sections {
		rows[i] = make([]*int, len(s.Questions))
	}
	return SectionalAnswers(rows...)
}

// Rows exposes both shapes as rows; a flat set is a single row.
func (a Answers) Rows() [][]*int {
	if a.Kind == SectionalAnswersKind {
		return a.Sections
	}
	return [][]*int{a.Flat}
}

// Selected returns the option chosen at pos. Missing entries read as skipped.
func (a Answers) Selected(pos Position) (int, bool) {
	rows := a.Rows()
	if pos.SectionIndex < 0 || pos.SectionIndex >= len(rows) {
		return 0, false
	}
	row := rows[pos.SectionIndex]
	if pos.QuestionIndex < 0 || pos.QuestionIndex >= len(row) || row[pos.QuestionIndex] == nil {
		return 0, false
	}
	return *row[pos.QuestionIndex], true
}

// With returns a copy of a with the entry at pos replaced. Only the touched row is copied.
func (a Answers) With(pos Position, selected *int) Answers {
	if selected != nil {
		selected = Choice(*selected)
	}
	if a.Kind != SectionalAnswersKind {
		if pos.SectionIndex != 0 || pos.QuestionIndex < 0 || pos.QuestionIndex >= len(a.Flat) {
			return a
		}
		flat := append([]*int(nil), a.Flat...)
		flat[pos.QuestionIndex] = selected
		return FlatAnswers(flat...)
	}
	if pos.SectionIndex < 0 || pos.SectionIndex >= len(a.Sections) {
		return a
	}
	row := a.Sections[pos.SectionIndex]
	if pos.QuestionIndex < 0 || pos.QuestionIndex >= len(row) {
		return a
	}
	sections := append([][]*int(nil), a.Sections...)
	updated := append([]*int(nil), row...)
	updated[pos.QuestionIndex] = selected
	sections[pos.SectionIndex] = updated
	return SectionalAnswers(sections...)
}

// Clone returns a deep copy.
func (a Answers) Clone() Answers {
	cloneRow := func(row []*int) []*int {
		out := make([]*int, len(row))
		for i, v := range row {
			if v != nil {
				out[i] = Choice(*v)
			}
		}
		return out
	}
	if a.Kind != SectionalAnswersKind {
		return FlatAnswers(cloneRow(a.Flat)...)
	}
	rows := make([][]*int, len(a.Sections))
	for i, row := range a.Sections {
		rows[i] = cloneRow(row)
	}
	return SectionalAnswers(rows...)
}

// Fits reports whether the answer shape exactly matches the definition.
func (a Answers) Fits(def TestDefinition) bool {
	if def.HasSections != (a.Kind == SectionalAnswersKind) {
		return false
	}
	groups := def.Groups()
	rows := a.Rows()
	if len(rows) != len(groups) {
		return false
	}
	for i, g := range groups {
		if len(rows[i]) != len(g.Questions) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes flat answers as an array and sectional answers as an
// object keyed by section index.
func (a Answers) MarshalJSON() ([]byte, error) {
	if a.Kind != SectionalAnswersKind {
		flat := a.Flat
		if flat == nil {
			flat = []*int{}
		}
		return json.Marshal(flat)
	}
	byIndex := make(map[string][]*int, len(a.Sections))
	for i, row := range a.Sections {
		if row == nil {
			row = []*int{}
		}
		byIndex[strconv.Itoa(i)] = row
	}
	return json.Marshal(byIndex)
}

// UnmarshalJSON accepts either shape produced by MarshalJSON.
func (a *Answers) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*a = Answers{}
		return nil
	}
	if trimmed[0] == '[' {
		var flat []*int
		if err := json.Unmarshal(trimmed, &flat); err != nil {
			return err
		}
		*a = FlatAnswers(flat...)
		return nil
	}

	var byIndex map[string][]*int
	if err := json.Unmarshal(trimmed, &byIndex); err != nil {
		return err
	}
	indexes := make([]int, 0, len(byIndex))
	for key := range byIndex {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 {
			return fmt.Errorf("answers: bad section key %q", key)
		}
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	size := 0
	if len(indexes) > 0 {
		size = indexes[len(indexes)-1] + 1
	}
	rows := make([][]*int, size)
	for _, idx := range indexes {
		rows[idx] = byIndex[strconv.Itoa(idx)]
	}
	*a = SectionalAnswers(rows...)
	return nil
}
