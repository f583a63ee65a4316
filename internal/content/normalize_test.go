package content

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/evalueate/proctor/internal/model"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", "[]"},
		{"bare array", `[{"q":"x"}]`, `[{"q":"x"}]`},
		{"code fence", "```json\n[1,2]\n```", "[1,2]"},
		{"prose wrapped object", `Here you go: {"questions":[]} hope that helps`, `{"questions":[]}`},
		{"prose wrapped array", `Sure! [1,2,3] Done.`, `[1,2,3]`},
		{"object before array", `{"a":[1,2]}`, `{"a":[1,2]}`},
		{"no json at all", "sorry, I cannot do that", "sorry, I cannot do that"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractJSON(tt.raw)
			if got != tt.want {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func mcqArrayJSON(n int) string {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"q":"Question %d about indexing?","o":["a","b","c","d"],"a":%d,"m":1}`, i+1, i%4)
	}
	sb.WriteString("]")
	return sb.String()
}

func TestNormalizeMCQ(t *testing.T) {
	t.Run("compact keys", func(t *testing.T) {
		qs, err := NormalizeMCQ(mcqArrayJSON(30))
		if err != nil {
			t.Fatalf("NormalizeMCQ: %v", err)
		}
		if len(qs) != MCQCount {
			t.Fatalf("expected %d questions, got %d", MCQCount, len(qs))
		}
		q := qs[0]
		if q.ID != 1 || q.Type != model.TypeMCQ || q.Marks != 1 {
			t.Errorf("unexpected first question: %+v", q)
		}
		if q.CorrectAnswer != "0" {
			t.Errorf("expected correct answer %q, got %q", "0", q.CorrectAnswer)
		}
		if len(q.Options) != 4 {
			t.Errorf("expected 4 options, got %d", len(q.Options))
		}
	})

	t.Run("verbose keys", func(t *testing.T) {
		var sb strings.Builder
		sb.WriteString("[")
		for i := 0; i < 30; i++ {
			if i > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, `{"text":"Q%d","options":["w","x","y","z"],"correctAnswer":3}`, i)
		}
		sb.WriteString("]")
		qs, err := NormalizeMCQ(sb.String())
		if err != nil {
			t.Fatalf("NormalizeMCQ: %v", err)
		}
		if qs[5].CorrectAnswer != "3" {
			t.Errorf("expected correct answer %q, got %q", "3", qs[5].CorrectAnswer)
		}
	})

	t.Run("extra questions truncated", func(t *testing.T) {
		qs, err := NormalizeMCQ(mcqArrayJSON(33))
		if err != nil {
			t.Fatalf("NormalizeMCQ: %v", err)
		}
		if len(qs) != MCQCount {
			t.Errorf("expected %d questions, got %d", MCQCount, len(qs))
		}
	})

	t.Run("too few rejected", func(t *testing.T) {
		if _, err := NormalizeMCQ(mcqArrayJSON(12)); err == nil {
			t.Error("expected validation error for short batch")
		}
	})

	t.Run("malformed rejected", func(t *testing.T) {
		if _, err := NormalizeMCQ("the model refused"); err == nil {
			t.Error("expected error for non-JSON response")
		}
	})
}

func TestNormalizeFITB(t *testing.T) {
	t.Run("dedupe first seen wins", func(t *testing.T) {
		raw := `[
			{"text":"A ___","correctAnswer":"one","marks":2},
			{"text":"B ___","correctAnswer":"two"},
			{"text":"A ___","correctAnswer":"changed"},
			{"text":"C ___","correctAnswer":"three"},
			{"text":"D ___","correctAnswer":"four"},
			{"text":"E ___","correctAnswer":"five","caseSensitive":true}
		]`
		qs, err := NormalizeFITB(raw)
		if err != nil {
			t.Fatalf("NormalizeFITB: %v", err)
		}
		if len(qs) != 5 {
			t.Fatalf("expected 5 after dedupe, got %d", len(qs))
		}
		if qs[0].CorrectAnswer != "one" {
			t.Errorf("first-seen answer lost: got %q", qs[0].CorrectAnswer)
		}
		if qs[0].ID != 8000 || qs[4].ID != 8004 {
			t.Errorf("unexpected id stamping: %d..%d", qs[0].ID, qs[4].ID)
		}
		for _, q := range qs {
			if q.Type != model.TypeFITB {
				t.Errorf("question %d: type %q", q.ID, q.Type)
			}
			if q.Marks != 2 {
				t.Errorf("question %d: marks %d", q.ID, q.Marks)
			}
		}
		if !qs[4].CaseSensitive {
			t.Error("caseSensitive flag dropped")
		}
	})

	t.Run("too few after dedupe", func(t *testing.T) {
		raw := `[
			{"text":"A","correctAnswer":"x"},
			{"text":"A","correctAnswer":"x"},
			{"text":"B","correctAnswer":"y"}
		]`
		if _, err := NormalizeFITB(raw); err == nil {
			t.Error("expected validation error")
		}
	})
}

func TestNormalizeCoding(t *testing.T) {
	longA := strings.Repeat("Design a rate limiter. ", 3)
	longB := strings.Repeat("Reverse a linked list in groups. ", 3)

	t.Run("bare array with examples", func(t *testing.T) {
		raw := fmt.Sprintf(`[
			{"type":"CODING","text":%q,"marks":20,"examples":[{"input":"n=3","output":"6"}]},
			{"type":"CODING","text":%q,"marks":25}
		]`, longA, longB)
		qs, err := NormalizeCoding(raw)
		if err != nil {
			t.Fatalf("NormalizeCoding: %v", err)
		}
		if len(qs) != 2 {
			t.Fatalf("expected 2 problems, got %d", len(qs))
		}
		if qs[0].ID != 9000 || qs[1].ID != 9001 {
			t.Errorf("unexpected ids %d, %d", qs[0].ID, qs[1].ID)
		}
		for _, q := range qs {
			if q.Marks != CodingMarks {
				t.Errorf("marks not coerced to %d: %d", CodingMarks, q.Marks)
			}
			if !strings.Contains(q.Text, "Sample Test Cases:") {
				t.Errorf("examples not rendered into text: %q", q.Text)
			}
		}
		if !strings.Contains(qs[0].Text, "Input: n=3") {
			t.Error("provider example missing from text")
		}
		if qs[1].Examples[0] != (model.Example{Input: "(See Problem Description)", Output: "(See Problem Description)"}) {
			t.Errorf("placeholder example missing: %+v", qs[1].Examples)
		}
	})

	t.Run("object wrapped array", func(t *testing.T) {
		raw := fmt.Sprintf(`{"questions":[{"text":%q},{"text":%q}]}`, longA, longB)
		qs, err := NormalizeCoding(raw)
		if err != nil {
			t.Fatalf("NormalizeCoding: %v", err)
		}
		if len(qs) != 2 {
			t.Errorf("expected 2 problems, got %d", len(qs))
		}
	})

	t.Run("single object rejected", func(t *testing.T) {
		raw := fmt.Sprintf(`{"text":%q}`, longA)
		if _, err := NormalizeCoding(raw); err == nil {
			t.Error("expected error for single problem")
		}
	})

	t.Run("trivial statement rejected", func(t *testing.T) {
		raw := fmt.Sprintf(`[{"text":"too short"},{"text":%q}]`, longB)
		if _, err := NormalizeCoding(raw); err == nil {
			t.Error("expected error when a statement is too short")
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		raw := fmt.Sprintf(`[{"text":%q},{"text":%q}]`, longA, longB)
		first, err := NormalizeCoding(raw)
		if err != nil {
			t.Fatalf("NormalizeCoding: %v", err)
		}
		second, _ := NormalizeCoding(raw)
		if first[0].Text != second[0].Text {
			t.Error("normalization of identical input differed")
		}
	})
}

func TestFallback(t *testing.T) {
	t.Run("mcq", func(t *testing.T) {
		qs := Fallback(model.SectionMCQ)
		if len(qs) != MCQCount {
			t.Fatalf("expected %d MCQs, got %d", MCQCount, len(qs))
		}
		for i, q := range qs {
			if q.ID != i+1 || q.Type != model.TypeMCQ || q.Marks != 1 || len(q.Options) != 4 || q.CorrectAnswer == "" {
				t.Fatalf("invalid fallback MCQ at %d: %+v", i, q)
			}
		}
	})

	t.Run("fitb", func(t *testing.T) {
		qs := Fallback(model.SectionFITB)
		if len(qs) != 10 {
			t.Fatalf("expected 10 FITB items, got %d", len(qs))
		}
		first := qs[0]
		if first.Text != "The complexity of binary search is O(___)." {
			t.Errorf("unexpected first item text: %q", first.Text)
		}
		if first.CorrectAnswer != "log n" || first.Marks != 2 || first.ID != 8001 {
			t.Errorf("unexpected first item: %+v", first)
		}
		for _, q := range qs {
			if q.Text == "" || q.CorrectAnswer == "" || q.Type != model.TypeFITB {
				t.Fatalf("invalid fallback FITB: %+v", q)
			}
		}
	})

	t.Run("coding", func(t *testing.T) {
		qs := Fallback(model.SectionCoding)
		if len(qs) != 2 {
			t.Fatalf("expected 2 coding problems, got %d", len(qs))
		}
		if qs[0].ID != 9001 || qs[1].ID != 9002 {
			t.Errorf("unexpected ids %d, %d", qs[0].ID, qs[1].ID)
		}
		for _, q := range qs {
			if q.Marks != CodingMarks || len(q.Examples) == 0 {
				t.Fatalf("invalid fallback coding problem: %+v", q)
			}
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		a := Fallback(model.SectionFITB)
		b := Fallback(model.SectionFITB)
		if !reflect.DeepEqual(a, b) {
			t.Fatal("fallback content is not deterministic")
		}
	})

	t.Run("unknown section", func(t *testing.T) {
		if qs := Fallback("s9-bogus"); qs != nil {
			t.Errorf("expected nil for unknown section, got %d items", len(qs))
		}
	})
}
