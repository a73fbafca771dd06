package scoring

import "mocktest-service/internal/domain"

// Policy selects the deployment's negative-marking behaviour.
type Policy struct {
	// NegativeMarking applies the definition's per-wrong penalty when true.
	NegativeMarking bool
}

// Score grades answers against def. It walks questions in storage order, never
// mutates its inputs and returns the same result for the same arguments.
//
// A question counts as skipped only when its answer is nil or absent; option 0
// is a real selection. Malformed questions are always wrong when answered.
func Score(def domain.TestDefinition, answers domain.Answers, policy Policy) domain.ScoreResult {
	penalty := 0.0
	if policy.NegativeMarking && def.NegativeMark > 0 {
		penalty = def.NegativeMark
	}

	groups := def.Groups()
	result := domain.ScoreResult{Sections: make([]domain.SectionScore, 0, len(groups))}
	raw := 0.0
	for si, group := range groups {
		section := domain.SectionScore{Name: def.SectionName(si), QuestionCount: len(group.Questions)}
		for qi, q := range group.Questions {
			section.Marks += q.Weight()
			selected, answered := answers.Selected(domain.Position{SectionIndex: si, QuestionIndex: qi})
			switch {
			case !answered:
				section.SkippedCount++
			case q.WellFormed() && selected == q.CorrectOptionIndex:
				section.CorrectCount++
				section.Score += q.Weight()
			default:
				section.WrongCount++
				section.Score -= penalty
			}
		}

		raw += section.Score
		result.TotalMarks += section.Marks
		result.TotalQuestions += section.QuestionCount
		result.CorrectCount += section.CorrectCount
		result.WrongCount += section.WrongCount
		result.SkippedCount += section.SkippedCount
		result.Sections = append(result.Sections, section)
	}

	// The floor applies to the whole attempt, never per question or section.
	if raw < 0 {
		raw = 0
	}
	result.TotalScore = raw
	return result
}

// QuestionReview describes one graded question for the review page.
type QuestionReview struct {
	Position     domain.Position `json:"position"`
	Text         string          `json:"text"`
	Options      []string        `json:"options"`
	Selected     *int            `json:"selected"`
	Correct      int             `json:"correctOptionIndex"`
	IsCorrect    bool            `json:"isCorrect"`
	Skipped      bool            `json:"skipped"`
	Marks        float64         `json:"marks"`
	SolutionText string          `json:"solutionText,omitempty"`
}

// Review lists every question with the submitted selection and its solution.
func Review(def domain.TestDefinition, answers domain.Answers) []QuestionReview {
	out := make([]QuestionReview, 0, def.QuestionCount())
	for si, group := range def.Groups() {
		for qi, q := range group.Questions {
			pos := domain.Position{SectionIndex: si, QuestionIndex: qi}
			item := QuestionReview{
				Position:     pos,
				Text:         q.Text,
				Options:      q.Options,
				Correct:      q.CorrectOptionIndex,
				Marks:        q.Weight(),
				SolutionText: q.SolutionText,
				Skipped:      true,
			}
			if selected, ok := answers.Selected(pos); ok {
				item.Selected = domain.Choice(selected)
				item.Skipped = false
				item.IsCorrect = q.WellFormed() && selected == q.CorrectOptionIndex
			}
			out = append(out, item)
		}
	}
	return out
}
