package domain

import (
	"encoding/json"
	"testing"
)

func TestAnswersJSONShapes(t *testing.T) {
	flat := FlatAnswers(Choice(1), nil, Choice(0))
	data, err := json.Marshal(flat)
	if err != nil {
		t.Fatalf("marshal flat: %v", err)
	}
	if string(data) != `[1,null,0]` {
		t.Fatalf("unexpected flat encoding %s", data)
	}

	sectional := SectionalAnswers([]*int{Choice(0), Choice(1)}, []*int{nil})
	data, err = json.Marshal(sectional)
	if err != nil {
		t.Fatalf("marshal sectional: %v", err)
	}
	if string(data) != `{"0":[0,1],"1":[null]}` {
		t.Fatalf("unexpected sectional encoding %s", data)
	}

	var decoded Answers
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal sectional: %v", err)
	}
	if decoded.Kind != SectionalAnswersKind || len(decoded.Sections) != 2 {
		t.Fatalf("expected two sections, got %+v", decoded)
	}
	if v, ok := decoded.Selected(Position{SectionIndex: 0, QuestionIndex: 1}); !ok || v != 1 {
		t.Fatalf("expected option 1, got %d %v", v, ok)
	}
	if _, ok := decoded.Selected(Position{SectionIndex: 1, QuestionIndex: 0}); ok {
		t.Fatalf("expected skipped entry")
	}
}

func TestAnswersRejectsBadSectionKey(t *testing.T) {
	var a Answers
	if err := json.Unmarshal([]byte(`{"x":[1]}`), &a); err == nil {
		t.Fatalf("expected error for non-numeric section key")
	}
}

func TestAnswersWithCopiesOnWrite(t *testing.T) {
	original := SectionalAnswers([]*int{nil, nil}, []*int{nil})
	updated := original.With(Position{SectionIndex: 0, QuestionIndex: 1}, Choice(3))

	if _, ok := original.Selected(Position{SectionIndex: 0, QuestionIndex: 1}); ok {
		t.Fatalf("original must not change")
	}
	if v, ok := updated.Selected(Position{SectionIndex: 0, QuestionIndex: 1}); !ok || v != 3 {
		t.Fatalf("expected updated option 3, got %d %v", v, ok)
	}

	out := updated.With(Position{SectionIndex: 5, QuestionIndex: 0}, Choice(1))
	if len(out.Sections) != 2 {
		t.Fatalf("out of range write must be ignored")
	}
}

func TestNewAnswersMatchesDefinition(t *testing.T) {
	def := TestDefinition{
		ID:          "t1",
		HasSections: true,
		Sections: []Section{
			{Name: "A", Questions: make([]Question, 2)},
			{Name: "B"},
		},
	}
	answers := NewAnswers(def)
	if !answers.Fits(def) {
		t.Fatalf("fresh answers must fit their definition")
	}
	if FlatAnswers(nil, nil).Fits(def) {
		t.Fatalf("flat answers must not fit a sectional definition")
	}
}
