package prompts

import (
	"reflect"
	"strings"
	"testing"

	"github.com/evalueate/proctor/internal/model"
)

func TestCodingRubricScores(t *testing.T) {
	want := []int{0, 5, 6, 9, 11, 14, 15, 20}
	got := CodingRubricScores()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CodingRubricScores() = %v, want %v", got, want)
	}
}

func TestSectionPrompt(t *testing.T) {
	jd := "Senior Go engineer building payment infrastructure"

	tests := []struct {
		id       model.SectionID
		contains []string
	}{
		{model.SectionMCQ, []string{"exactly 30 Hard MCQs", jd, `"a": Correct Option Index`}},
		{model.SectionFITB, []string{"10 DISTINCT and UNIQUE", jd, "'___' for the blank"}},
		{model.SectionCoding, []string{"EXACTLY 2 distinct", jd, "JSON ARRAY containing exactly 2 objects"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			p := SectionPrompt(tt.id, jd)
			for _, want := range tt.contains {
				if !strings.Contains(p, want) {
					t.Errorf("prompt for %s missing %q", tt.id, want)
				}
			}
		})
	}

	if p := SectionPrompt("s9-unknown", jd); p != "" {
		t.Errorf("expected empty prompt for unknown section, got %q", p)
	}
}

func TestSectionPromptTruncatesJD(t *testing.T) {
	jd := strings.Repeat("x", 1000)
	p := MCQPrompt(jd)
	if strings.Contains(p, jd) {
		t.Error("full job description should not be embedded")
	}
	if !strings.Contains(p, strings.Repeat("x", jdLimit)) {
		t.Error("truncated job description missing")
	}
}

func TestGradeCodingPrompt(t *testing.T) {
	p := GradeCodingPrompt("Reverse a list", "def rev(xs): return xs[::-1]")
	for _, want := range []string{
		"Strict Code Grader",
		"Reverse a list",
		"def rev(xs)",
		"Base Case Correct: +5 Marks",
		"General Case Correct: +6 Marks",
		"Edge Case Correct: +9 Marks",
		"Return ONLY the integer score (0, 5, 6, 9, 11, 14, 15, 20).",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("grading prompt missing %q", want)
		}
	}
}

func TestFeedbackPrompt(t *testing.T) {
	p := FeedbackPrompt("Backend role", 42, 90)
	for _, want := range []string{"Backend role", "Score Achieved: 42 / 90", `"roadmap"`} {
		if !strings.Contains(p, want) {
			t.Errorf("feedback prompt missing %q", want)
		}
	}
}
