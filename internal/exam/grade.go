package exam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/evalueate/proctor/internal/content"
	"github.com/evalueate/proctor/internal/llm/prompts"
	"github.com/evalueate/proctor/internal/model"
	"github.com/evalueate/proctor/internal/store"
)

// minGradableCodeLen is the shortest coding answer worth sending to the
// grading provider. Anything shorter scores 0 without a call.
const minGradableCodeLen = 20

// Submit grades the submitted answers, finalizes the session, and
// returns the result. Submitting a completed session again returns the
// stored result without regrading.
func (s *Service) Submit(ctx context.Context, sessionID string, answers model.AnswerSet) (model.Result, error) {
	sess, err := s.store.GetSession(sessionID)
	if err != nil {
		return model.Result{}, err
	}
	switch sess.Status {
	case model.StatusCompleted:
		return sess.Result(), nil
	case model.StatusTerminated:
		return model.Result{}, ErrSessionNotActive
	}

	// Consume the attempt before grading begins, so a crash mid-grade
	// still leaves the candidate locked.
	if err := s.store.Lock(sess.Candidate.Email); err != nil {
		return model.Result{}, err
	}
	if err := s.store.SaveAnswers(sessionID, answers); err != nil {
		return model.Result{}, err
	}

	var result model.Result
	for _, sec := range sess.Sections {
		for _, q := range sec.Questions {
			result.MaxScore += q.Marks
			awarded := s.gradeQuestion(ctx, sessionID, q, answers.Get(q.ID))
			result.Score += awarded
			result.SectionScores.Add(sec.ID, awarded)
		}
	}
	result.Feedback = s.feedback(ctx, sess.JobDescription, result.Score, result.MaxScore)

	if err := s.store.Finalize(sessionID, result); err != nil {
		if errors.Is(err, store.ErrAlreadyFinalized) {
			// A concurrent submit won the race; its result stands.
			final, gerr := s.store.GetSession(sessionID)
			if gerr != nil {
				return model.Result{}, gerr
			}
			return final.Result(), nil
		}
		return model.Result{}, err
	}

	details := fmt.Sprintf("score %d/%d", result.Score, result.MaxScore)
	if err := s.store.AppendEvent(sessionID, model.ActionSubmitted, details); err != nil {
		s.logger.Error("append event", "session", sessionID, "error", err)
	}
	s.logger.Info("session graded", "session", sessionID, "score", result.Score, "maxScore", result.MaxScore)
	return result, nil
}

func (s *Service) gradeQuestion(ctx context.Context, sessionID string, q model.Question, answer string) int {
	switch q.Type {
	case model.TypeMCQ:
		if matchMCQ(q, answer) {
			return q.Marks
		}
	case model.TypeFITB:
		if matchFITB(q, answer) {
			return q.Marks
		}
	case model.TypeCoding:
		return s.gradeCoding(ctx, sessionID, q, answer)
	}
	return 0
}

// matchMCQ compares option indexes numerically. Clients send the
// selected index as a JSON number, so it can arrive as "2", " 2" or
// "2.0". A missing or non-numeric answer scores 0, not an error.
func matchMCQ(q model.Question, answer string) bool {
	got, err := strconv.ParseFloat(strings.TrimSpace(answer), 64)
	if err != nil {
		return false
	}
	want, err := strconv.ParseFloat(strings.TrimSpace(q.CorrectAnswer), 64)
	if err != nil {
		return false
	}
	return got == want
}

func matchFITB(q model.Question, answer string) bool {
	got := strings.TrimSpace(answer)
	want := strings.TrimSpace(q.CorrectAnswer)
	if got == "" || want == "" {
		return false
	}
	if q.CaseSensitive {
		return got == want
	}
	return strings.EqualFold(got, want)
}

// gradeCoding asks the provider to apply the rubric to one coding
// answer. A failed call or an unparseable response awards 0 and leaves
// a GRADING_ERROR event behind; the rest of the submission is graded
// normally.
func (s *Service) gradeCoding(ctx context.Context, sessionID string, q model.Question, code string) int {
	if len(strings.TrimSpace(code)) < minGradableCodeLen {
		return 0
	}

	raw, err := s.llm.Generate(ctx, prompts.GradeCodingPrompt(q.Text, code), false)
	if err != nil {
		s.reportGradingError(sessionID, q.ID, err)
		return 0
	}
	score, ok := extractScore(raw)
	if !ok {
		s.reportGradingError(sessionID, q.ID, fmt.Errorf("no rubric score in response %q", raw))
		return 0
	}
	return score
}

func (s *Service) reportGradingError(sessionID string, questionID int, err error) {
	s.logger.Error("coding grade failed, awarding 0", "session", sessionID, "question", questionID, "error", err)
	if aerr := s.store.AppendEvent(sessionID, model.ActionGradingError, fmt.Sprintf("question %d: %v", questionID, err)); aerr != nil {
		s.logger.Error("append event", "session", sessionID, "error", aerr)
	}
}

// extractScore pulls the first integer out of the grading response and
// accepts it only if it is a score the rubric can produce.
func extractScore(raw string) (int, bool) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return !unicode.IsDigit(r)
	})
	if len(fields) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, false
	}
	for _, valid := range prompts.CodingRubricScores() {
		if n == valid {
			return n, true
		}
	}
	return 0, false
}

// feedback asks the provider for the narrative report. On failure the
// report degrades to a canned summary carrying the real score, so a
// finalized session always has non-empty feedback.
func (s *Service) feedback(ctx context.Context, jd string, score, maxScore int) model.Feedback {
	raw, err := s.llm.Generate(ctx, prompts.FeedbackPrompt(jd, score, maxScore), true)
	if err == nil {
		var fb model.Feedback
		if jerr := json.Unmarshal([]byte(content.ExtractJSON(raw)), &fb); jerr == nil && fb.Summary != "" {
			return fb
		}
		err = errors.New("response is not a feedback object")
	}
	s.logger.Warn("feedback generation failed, using canned report", "error", err)
	return cannedFeedback(score, maxScore)
}

func cannedFeedback(score, maxScore int) model.Feedback {
	return model.Feedback{
		Summary: fmt.Sprintf("The candidate scored %d out of %d. Automated feedback was unavailable for this session; the score reflects the graded answers.", score, maxScore),
		Strengths: []string{
			"Completed the full assessment",
			"Attempted all released sections",
			"Submitted within the allotted time",
		},
		Weaknesses: []string{
			"Detailed analysis unavailable",
			"Review the per-section score breakdown",
			"Compare answers against the question set",
		},
		Roadmap: []string{
			"Review core CS fundamentals",
			"Practice timed coding problems",
			"Revisit topics from the job description",
		},
	}
}
