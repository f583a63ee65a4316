package content

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/evalueate/proctor/internal/model"
)

// Question ids are stamped with section-local offsets so answers keyed by
// question id never collide across sections.
const (
	fitbIDBase   = 8000
	codingIDBase = 9000
)

const minCodingTextLen = 20

// ValidationError reports why a provider response was rejected. The
// caller substitutes fallback content; the error is only logged.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

// rawQuestion tolerates both the compact key scheme the generation
// prompts ask for (q/o/a/m) and the verbose one providers drift into.
type rawQuestion struct {
	ID            int             `json:"id"`
	Type          string          `json:"type"`
	Q             string          `json:"q"`
	Text          string          `json:"text"`
	O             []string        `json:"o"`
	Options       []string        `json:"options"`
	A             json.RawMessage `json:"a"`
	CorrectAnswer json.RawMessage `json:"correctAnswer"`
	M             int             `json:"m"`
	Marks         int             `json:"marks"`
	Examples      []model.Example `json:"examples"`
	CaseSensitive bool            `json:"caseSensitive"`
}

func (r rawQuestion) text() string {
	if r.Q != "" {
		return r.Q
	}
	return r.Text
}

func (r rawQuestion) options() []string {
	if len(r.O) > 0 {
		return r.O
	}
	return r.Options
}

func (r rawQuestion) answer() string {
	raw := r.A
	if len(raw) == 0 {
		raw = r.CorrectAnswer
	}
	if len(raw) == 0 {
		return ""
	}
	var v model.AnswerValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return string(v)
}

// decodeBatch resolves the dynamic shape of provider output in a fixed
// order: plain array, object wrapping a "questions" array, single object.
func decodeBatch(cleaned string) ([]rawQuestion, error) {
	var items []rawQuestion
	if err := json.Unmarshal([]byte(cleaned), &items); err == nil {
		return items, nil
	}

	var wrapper struct {
		Questions []rawQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapper); err == nil && len(wrapper.Questions) > 0 {
		return wrapper.Questions, nil
	}

	var single rawQuestion
	if err := json.Unmarshal([]byte(cleaned), &single); err == nil && single.text() != "" {
		return []rawQuestion{single}, nil
	}

	return nil, &ValidationError{Errors: []string{"response is not a question array"}}
}

// MCQCount is the required size of the multiple-choice section.
const MCQCount = 30

// NormalizeMCQ maps raw provider output into exactly MCQCount canonical
// MCQ questions, expanding compact keys and stamping sequential ids.
func NormalizeMCQ(raw string) ([]model.Question, error) {
	items, err := decodeBatch(ExtractJSON(raw))
	if err != nil {
		return nil, err
	}

	var errs []string
	questions := make([]model.Question, 0, MCQCount)
	for i, item := range items {
		text := strings.TrimSpace(item.text())
		if text == "" {
			errs = append(errs, fmt.Sprintf("question %d: empty text", i+1))
			continue
		}
		opts := item.options()
		if len(opts) != 4 {
			errs = append(errs, fmt.Sprintf("question %d: expected 4 options, got %d", i+1, len(opts)))
			continue
		}
		questions = append(questions, model.Question{
			ID:            len(questions) + 1,
			Type:          model.TypeMCQ,
			Text:          text,
			Options:       opts,
			CorrectAnswer: item.answer(),
			Marks:         1,
		})
	}

	if len(questions) < MCQCount {
		errs = append(errs, fmt.Sprintf("need %d MCQ questions, got %d usable", MCQCount, len(questions)))
		return nil, &ValidationError{Errors: errs}
	}
	return questions[:MCQCount], nil
}

// MinFITBCount is the minimum acceptable fill-in-blank section size
// after de-duplication.
const MinFITBCount = 5

// NormalizeFITB de-duplicates by question text (first seen wins), drops
// empty entries, and stamps section-local ids. Fewer than MinFITBCount
// distinct questions is a validation failure.
func NormalizeFITB(raw string) ([]model.Question, error) {
	items, err := decodeBatch(ExtractJSON(raw))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var questions []model.Question
	for _, item := range items {
		text := strings.TrimSpace(item.text())
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true

		marks := item.Marks
		if marks == 0 {
			marks = item.M
		}
		if marks <= 0 {
			marks = 2
		}
		questions = append(questions, model.Question{
			ID:            fitbIDBase + len(questions),
			Type:          model.TypeFITB,
			Text:          text,
			CorrectAnswer: item.answer(),
			Marks:         marks,
			CaseSensitive: item.CaseSensitive,
		})
	}

	if len(questions) < MinFITBCount {
		return nil, &ValidationError{Errors: []string{
			fmt.Sprintf("need at least %d distinct FITB questions, got %d", MinFITBCount, len(questions)),
		}}
	}
	return questions, nil
}

// MinCodingCount is the minimum number of coding problems per section.
const MinCodingCount = 2

// CodingMarks is the fixed mark weight of every coding problem; the
// grading rubric's sub-scores sum to it.
const CodingMarks = 20

// placeholderExample is substituted when the provider omits sample test
// cases for a coding problem.
var placeholderExample = model.Example{
	Input:  "(See Problem Description)",
	Output: "(See Problem Description)",
}

// NormalizeCoding unwraps object-wrapped arrays, enforces problem count
// and statement length, and renders examples into the problem text.
func NormalizeCoding(raw string) ([]model.Question, error) {
	items, err := decodeBatch(ExtractJSON(raw))
	if err != nil {
		return nil, err
	}
	if len(items) < MinCodingCount {
		return nil, &ValidationError{Errors: []string{
			fmt.Sprintf("need at least %d coding problems, got %d", MinCodingCount, len(items)),
		}}
	}

	var errs []string
	questions := make([]model.Question, 0, len(items))
	for i, item := range items {
		text := strings.TrimSpace(item.text())
		if len(text) <= minCodingTextLen {
			errs = append(errs, fmt.Sprintf("problem %d: statement too short (%d chars)", i+1, len(text)))
			continue
		}
		examples := item.Examples
		if len(examples) == 0 {
			examples = []model.Example{placeholderExample}
		}
		questions = append(questions, model.Question{
			ID:       codingIDBase + len(questions),
			Type:     model.TypeCoding,
			Text:     renderSampleCases(text, examples),
			Marks:    CodingMarks,
			Examples: examples,
		})
	}

	if len(questions) < MinCodingCount {
		errs = append(errs, fmt.Sprintf("need at least %d valid coding problems, got %d", MinCodingCount, len(questions)))
		return nil, &ValidationError{Errors: errs}
	}
	return questions, nil
}

// renderSampleCases appends the examples to the problem statement in a
// fixed human-readable layout so repeated normalization of the same
// input yields identical text.
func renderSampleCases(text string, examples []model.Example) string {
	var sb strings.Builder
	sb.WriteString(text)
	sb.WriteString("\n\nSample Test Cases:")
	for i, ex := range examples {
		fmt.Fprintf(&sb, "\nExample %d:\nInput: %s\nOutput: %s", i+1, ex.Input, ex.Output)
	}
	return sb.String()
}
