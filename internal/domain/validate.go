package domain

import (
	"errors"
	"fmt"
)

// Validate checks a definition at authoring/import time.
// Problems are joined under ErrMalformedDefinition.
func Validate(def TestDefinition) error {
	var problems []error
	if def.ID == "" {
		problems = append(problems, errors.New("id is required"))
	}
	if def.DurationSeconds < 0 || def.PerQuestionSeconds < 0 {
		problems = append(problems, errors.New("durations must not be negative"))
	}
	if def.DurationSeconds == 0 && def.PerQuestionSeconds == 0 {
		problems = append(problems, errors.New("durationSeconds or perQuestionSeconds is required"))
	}
	if def.NegativeMark < 0 {
		problems = append(problems, errors.New("negativeMark must not be negative"))
	}
	if def.HasSections && len(def.Questions) > 0 {
		problems = append(problems, errors.New("sectional test must not carry flat questions"))
	}
	if !def.HasSections && len(def.Sections) > 0 {
		problems = append(problems, errors.New("flat test must not carry sections"))
	}
	if def.QuestionCount() == 0 {
		problems = append(problems, errors.New("test has no questions"))
	}

	for si, group := range def.Groups() {
		label := func(qi int) string {
			if def.HasSections {
				return fmt.Sprintf("section %d (%s) question %d", si+1, def.SectionName(si), qi+1)
			}
			return fmt.Sprintf("question %d", qi+1)
		}
		for qi, q := range group.Questions {
			if len(q.Options) != OptionCount {
				problems = append(problems, fmt.Errorf("%s: has %d options, want %d", label(qi), len(q.Options), OptionCount))
			}
			if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= OptionCount {
				problems = append(problems, fmt.Errorf("%s: correct option %d out of range", label(qi), q.CorrectOptionIndex))
			}
			if q.Marks < 0 {
				problems = append(problems, fmt.Errorf("%s: marks must be positive", label(qi)))
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrMalformedDefinition, errors.Join(problems...))
}
