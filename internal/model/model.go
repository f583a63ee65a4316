package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SectionID identifies one of the three fixed assessment phases.
// The set is closed: prompt selection, fallback content, and the marks
// scheme are all keyed by these ids.
type SectionID string

const (
	SectionMCQ    SectionID = "s1-mcq"
	SectionFITB   SectionID = "s2-fitb"
	SectionCoding SectionID = "s3-coding"
)

// SectionOrder is the fixed ordering of sections within every session.
var SectionOrder = [3]SectionID{SectionMCQ, SectionFITB, SectionCoding}

// QuestionType represents the grading strategy a question uses.
type QuestionType string

const (
	TypeMCQ    QuestionType = "MCQ"
	TypeFITB   QuestionType = "FITB"
	TypeCoding QuestionType = "CODING"
)

// SessionStatus represents the externally visible state of a session.
type SessionStatus string

const (
	StatusActive     SessionStatus = "ACTIVE"
	StatusCompleted  SessionStatus = "COMPLETED"
	StatusTerminated SessionStatus = "TERMINATED"
)

// Audit log actions recorded in the proctoring event log.
const (
	ActionSessionStarted    = "SESSION_STARTED"
	ActionSectionGenerated  = "SECTION_GENERATED"
	ActionViolationDetected = "VIOLATION_DETECTED"
	ActionSessionTerminated = "SESSION_TERMINATED"
	ActionGradingError      = "GRADING_ERROR"
	ActionSubmitted         = "SUBMITTED"
)

// Example is a sample test case attached to a coding problem.
type Example struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Question is a single assessment question. CorrectAnswer is held strictly
// server-side; candidate-facing payloads use QuestionView instead.
// For MCQ questions CorrectAnswer is the decimal option index ("0".."3").
type Question struct {
	ID            int          `json:"id"`
	Type          QuestionType `json:"type"`
	Text          string       `json:"text"`
	Marks         int          `json:"marks"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
	Options       []string     `json:"options,omitempty"`
	Examples      []Example    `json:"examples,omitempty"`
	CaseSensitive bool         `json:"caseSensitive,omitempty"`
}

// View returns the answer-stripped projection of the question.
func (q Question) View() QuestionView {
	return QuestionView{
		ID:            q.ID,
		Type:          q.Type,
		Text:          q.Text,
		Marks:         q.Marks,
		Options:       q.Options,
		Examples:      q.Examples,
		CaseSensitive: q.CaseSensitive,
	}
}

// QuestionView is the projection of a Question that may be serialized to
// candidates before submission. It has no field for the correct answer,
// so the confidentiality invariant holds by construction.
type QuestionView struct {
	ID            int          `json:"id"`
	Type          QuestionType `json:"type"`
	Text          string       `json:"text"`
	Marks         int          `json:"marks"`
	Options       []string     `json:"options,omitempty"`
	Examples      []Example    `json:"examples,omitempty"`
	CaseSensitive bool         `json:"caseSensitive,omitempty"`
}

// Section is one phase of an assessment. Questions is empty and Pending
// true until exactly one generation call populates it.
type Section struct {
	ID              SectionID    `json:"id"`
	Title           string       `json:"title"`
	DurationMinutes int          `json:"durationMinutes"`
	Type            QuestionType `json:"type"`
	Questions       []Question   `json:"questions"`
	Pending         bool         `json:"isPending"`
}

// View returns the answer-stripped projection of the section.
func (s Section) View() SectionView {
	views := make([]QuestionView, 0, len(s.Questions))
	for _, q := range s.Questions {
		views = append(views, q.View())
	}
	return SectionView{
		ID:              s.ID,
		Title:           s.Title,
		DurationMinutes: s.DurationMinutes,
		Type:            s.Type,
		Questions:       views,
		Pending:         s.Pending,
	}
}

// SectionView is the candidate-facing projection of a Section.
type SectionView struct {
	ID              SectionID      `json:"id"`
	Title           string         `json:"title"`
	DurationMinutes int            `json:"durationMinutes"`
	Type            QuestionType   `json:"type"`
	Questions       []QuestionView `json:"questions"`
	Pending         bool           `json:"isPending"`
}

// DefaultSections returns the fixed three-section skeleton of a new
// session. Section 1 questions are filled in at creation time.
func DefaultSections() []Section {
	return []Section{
		{ID: SectionMCQ, Title: "Section 1: CS Fundamentals & Domain (30 Mins)", DurationMinutes: 30, Type: TypeMCQ, Pending: true},
		{ID: SectionFITB, Title: "Section 2: Technical Core (5 Mins)", DurationMinutes: 5, Type: TypeFITB, Pending: true},
		{ID: SectionCoding, Title: "Section 3: Advanced Coding (40 Mins)", DurationMinutes: 40, Type: TypeCoding, Pending: true},
	}
}

// Candidate is the identity snapshot stored on a session at creation time.
type Candidate struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AnswerValue is a submitted answer. Clients send MCQ answers as JSON
// numbers and FITB/coding answers as strings; both decode to a string.
type AnswerValue string

// UnmarshalJSON accepts a JSON string, number, or null.
func (a *AnswerValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*a = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = AnswerValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*a = AnswerValue(n.String())
		return nil
	}
	return fmt.Errorf("answer value must be a string or number, got %s", trimmed)
}

// AnswerSet maps question ids (as decimal strings, per JSON object keys)
// to submitted answers.
type AnswerSet map[string]AnswerValue

// Get returns the answer for a question id, or "" if absent.
func (as AnswerSet) Get(questionID int) string {
	return string(as[strconv.Itoa(questionID)])
}

// SectionScores holds the per-section score breakdown.
type SectionScores struct {
	S1 int `json:"s1"`
	S2 int `json:"s2"`
	S3 int `json:"s3"`
}

// Add accumulates awarded marks into the slot for the given section.
func (ss *SectionScores) Add(id SectionID, awarded int) {
	switch id {
	case SectionMCQ:
		ss.S1 += awarded
	case SectionFITB:
		ss.S2 += awarded
	case SectionCoding:
		ss.S3 += awarded
	}
}

// Feedback is the narrative report attached to a finalized session.
type Feedback struct {
	Summary    string   `json:"summary"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
	Roadmap    []string `json:"roadmap"`
}

// Result is the finalized outcome of a session, returned to the
// submitting client and persisted for admin retrieval.
type Result struct {
	Score         int           `json:"score"`
	MaxScore      int           `json:"maxScore"`
	SectionScores SectionScores `json:"sectionScores"`
	Feedback      Feedback      `json:"feedback"`
}

// Session is the central aggregate: one candidate's single attempt from
// creation to finalized score.
type Session struct {
	ID             string        `json:"sessionId"`
	Candidate      Candidate     `json:"candidate"`
	JobDescription string        `json:"jobDescription"`
	Sections       []Section     `json:"sections"`
	Status         SessionStatus `json:"status"`
	Answers        AnswerSet     `json:"answers,omitempty"`
	FinalScore     int           `json:"finalScore"`
	MaxScore       int           `json:"maxScore"`
	SectionScores  SectionScores `json:"sectionScores"`
	Feedback       *Feedback     `json:"feedback,omitempty"`
	StartTime      time.Time     `json:"startTime"`
	EndTime        *time.Time    `json:"endTime,omitempty"`
}

// SectionByID returns the section with the given id, or nil.
func (s *Session) SectionByID(id SectionID) *Section {
	for i := range s.Sections {
		if s.Sections[i].ID == id {
			return &s.Sections[i]
		}
	}
	return nil
}

// Result returns the finalized outcome of a completed session.
func (s *Session) Result() Result {
	r := Result{
		Score:         s.FinalScore,
		MaxScore:      s.MaxScore,
		SectionScores: s.SectionScores,
	}
	if s.Feedback != nil {
		r.Feedback = *s.Feedback
	}
	return r
}

// SessionSummary is the admin listing row for a session.
type SessionSummary struct {
	SessionID     string        `json:"sessionId"`
	CandidateName string        `json:"candidateName"`
	Email         string        `json:"email"`
	Score         int           `json:"score"`
	MaxScore      int           `json:"maxScore"`
	SectionScores SectionScores `json:"sectionScores"`
	Status        SessionStatus `json:"status"`
	StartTime     time.Time     `json:"timestamp"`
	EvidenceCount int           `json:"evidenceCount"`
	Feedback      *Feedback     `json:"feedback,omitempty"`
}

// Evidence is a proctoring capture attached to a session.
type Evidence struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"sessionId"`
	Type      string    `json:"type"`
	At        time.Time `json:"time"`
	Image     string    `json:"image"`
}

// LogEntry is one row of a session's append-only audit log.
type LogEntry struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"sessionId"`
	At        time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
}

// Admin is a reviewer account for the admin API.
type Admin struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DirectoryEntry is an admin-provisioned candidate identity with its
// access-lock state.
type DirectoryEntry struct {
	Email      string    `json:"email"`
	AccessCode string    `json:"accessCode"`
	Locked     bool      `json:"locked"`
	CreatedAt  time.Time `json:"createdAt"`
}
