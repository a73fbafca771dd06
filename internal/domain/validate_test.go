package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateAcceptsWellFormedDefinition(t *testing.T) {
	def := TestDefinition{
		ID:              "t1",
		DurationSeconds: 600,
		Questions: []Question{
			{Text: "2+2", Options: []string{"3", "4", "5", "6"}, CorrectOptionIndex: 1},
		},
	}
	if err := Validate(def); err != nil {
		t.Fatalf("expected valid definition, got %v", err)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	def := TestDefinition{
		ID:          "t1",
		HasSections: true,
		Sections: []Section{
			{Name: "A", Questions: []Question{
				{Options: []string{"a", "b"}, CorrectOptionIndex: 5, Marks: -1},
			}},
		},
	}
	err := Validate(def)
	if !errors.Is(err, ErrMalformedDefinition) {
		t.Fatalf("expected malformed definition, got %v", err)
	}
	for _, want := range []string{"durationSeconds", "has 2 options", "out of range", "marks must be positive"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestPlannedDurationFallsBackToPerQuestion(t *testing.T) {
	def := TestDefinition{PerQuestionSeconds: 30, Questions: make([]Question, 4)}
	if got := def.PlannedDurationSeconds(); got != 120 {
		t.Fatalf("expected 120s, got %d", got)
	}
	def.DurationSeconds = 900
	if got := def.PlannedDurationSeconds(); got != 900 {
		t.Fatalf("expected whole-test timer to win, got %d", got)
	}
}

func TestTimeTakenIsClamped(t *testing.T) {
	cases := []struct {
		planned, remaining, want int
	}{
		{1800, 1735, 65},
		{1800, 0, 1800},
		{1800, 1900, 0},
		{1800, -5, 1800},
	}
	for _, tc := range cases {
		if got := TimeTaken(tc.planned, tc.remaining); got != tc.want {
			t.Fatalf("TimeTaken(%d, %d) = %d, want %d", tc.planned, tc.remaining, got, tc.want)
		}
	}
}

func TestUnnamedSectionsAreNumbered(t *testing.T) {
	option := []string{"a", "b", "c", "d"}
	def := TestDefinition{
		ID:              "t1",
		DurationSeconds: 600,
		HasSections:     true,
		Sections: []Section{
			{Name: "Reasoning", Questions: []Question{{Options: option}}},
			{Questions: []Question{{Options: option}}},
		},
	}
	if err := Validate(def); err != nil {
		t.Fatalf("expected unnamed section to be accepted, got %v", err)
	}
	if got := def.SectionName(0); got != "Reasoning" {
		t.Fatalf("expected explicit name, got %q", got)
	}
	if got := def.SectionName(1); got != "Section 2" {
		t.Fatalf("expected fallback name, got %q", got)
	}
	def.HasSections = false
	if got := def.SectionName(0); got != "" {
		t.Fatalf("expected no name for flat test, got %q", got)
	}
}
