// Package exam implements the assessment workflow: starting a session
// against the candidate directory, populating sections on demand,
// recording proctoring violations, and grading submissions.
package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/evalueate/proctor/internal/content"
	"github.com/evalueate/proctor/internal/llm/prompts"
	"github.com/evalueate/proctor/internal/model"
	"github.com/evalueate/proctor/internal/store"
)

// Sentinel errors the handler layer maps to HTTP status codes.
var (
	ErrInvalidCredentials = errors.New("invalid email or access code")
	ErrAttemptUsed        = errors.New("access code has already been used")
	ErrSessionNotActive   = errors.New("session is not active")
)

// MaxViolations is the number of proctoring violations after which a
// session is terminated server-side.
const MaxViolations = 3

// Provider generates model completions. *llm.Client satisfies it; tests
// substitute stubs.
type Provider interface {
	Generate(ctx context.Context, prompt string, structured bool) (string, error)
}

// Service coordinates the store and the provider for the full session
// lifecycle.
type Service struct {
	store  *store.Store
	llm    Provider
	logger *slog.Logger

	mu       sync.Mutex
	genLocks map[string]*sync.Mutex
}

// New creates a Service.
func New(st *store.Store, provider Provider, logger *slog.Logger) *Service {
	return &Service{
		store:    st,
		llm:      provider,
		logger:   logger,
		genLocks: make(map[string]*sync.Mutex),
	}
}

// Start authorizes the candidate and creates a session with the first
// section already populated. The attempt is consumed later, when the
// session is submitted or terminated, not here.
func (s *Service) Start(ctx context.Context, cand model.Candidate, accessCode, jobDescription string) (*model.Session, error) {
	ok, err := s.store.Authorize(cand.Email, accessCode)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	locked, err := s.store.IsLocked(cand.Email)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, ErrAttemptUsed
	}

	sections := model.DefaultSections()
	questions, fromFallback := s.generate(ctx, model.SectionMCQ, jobDescription)
	sections[0].Questions = questions
	sections[0].Pending = false

	sess, err := s.store.CreateSession(cand, jobDescription, sections)
	if err != nil {
		return nil, err
	}

	details := fmt.Sprintf("candidate %s", cand.Email)
	if fromFallback {
		details += " (fallback content)"
	}
	if err := s.store.AppendEvent(sess.ID, model.ActionSessionStarted, details); err != nil {
		s.logger.Error("append event", "session", sess.ID, "error", err)
	}

	s.logger.Info("session started",
		"session", sess.ID, "email", cand.Email, "fallback", fromFallback)
	return sess, nil
}

// GenerateSection populates a pending section on demand. Repeat calls
// return the stored questions, and concurrent calls for the same
// section collapse onto a single provider call.
func (s *Service) GenerateSection(ctx context.Context, sessionID string, sectionID model.SectionID) (*model.Section, error) {
	sess, err := s.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != model.StatusActive {
		return nil, ErrSessionNotActive
	}
	sec := sess.SectionByID(sectionID)
	if sec == nil {
		return nil, store.ErrNotFound
	}
	if !sec.Pending {
		return sec, nil
	}

	unlock := s.lockSection(sessionID, sectionID)
	defer unlock()

	// Re-check under the lock: another request may have populated the
	// section while we waited.
	sess, err = s.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	sec = sess.SectionByID(sectionID)
	if !sec.Pending {
		s.dropSectionLock(sessionID, sectionID)
		return sec, nil
	}

	questions, fromFallback := s.generate(ctx, sectionID, sess.JobDescription)
	stored, err := s.store.SetSectionQuestions(sessionID, sectionID, questions)
	if err != nil {
		return nil, err
	}
	sec.Questions = stored
	sec.Pending = false
	s.dropSectionLock(sessionID, sectionID)

	details := fmt.Sprintf("%s: %d questions", sectionID, len(stored))
	if fromFallback {
		details += " (fallback content)"
	}
	if err := s.store.AppendEvent(sessionID, model.ActionSectionGenerated, details); err != nil {
		s.logger.Error("append event", "session", sessionID, "error", err)
	}
	return sec, nil
}

func (s *Service) lockSection(sessionID string, sectionID model.SectionID) func() {
	key := sessionID + "/" + string(sectionID)
	s.mu.Lock()
	l, ok := s.genLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.genLocks[key] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// dropSectionLock removes the per-section mutex once the section is
// populated. Later requests return on the pending check before ever
// reaching the lock, and the map stays bounded by in-flight
// generations instead of growing with every populated section.
// Waiters already holding the mutex pointer are unaffected.
func (s *Service) dropSectionLock(sessionID string, sectionID model.SectionID) {
	s.mu.Lock()
	delete(s.genLocks, sessionID+"/"+string(sectionID))
	s.mu.Unlock()
}

// generate produces content for a section, substituting the built-in
// fallback set when the provider call or validation fails. It never
// returns an empty section.
func (s *Service) generate(ctx context.Context, id model.SectionID, jd string) (questions []model.Question, fromFallback bool) {
	raw, err := s.llm.Generate(ctx, prompts.SectionPrompt(id, jd), false)
	if err == nil {
		questions, err = normalize(id, raw)
		if err == nil {
			return questions, false
		}
	}
	s.logger.Warn("section generation failed, using fallback content", "section", id, "error", err)
	return content.Fallback(id), true
}

func normalize(id model.SectionID, raw string) ([]model.Question, error) {
	switch id {
	case model.SectionMCQ:
		return content.NormalizeMCQ(raw)
	case model.SectionFITB:
		return content.NormalizeFITB(raw)
	case model.SectionCoding:
		return content.NormalizeCoding(raw)
	}
	return nil, fmt.Errorf("unknown section %q", id)
}

// RecordViolation appends a proctoring event, stores the capture when
// one is attached, and terminates the session once the violation count
// reaches MaxViolations. It reports whether the session is terminated.
func (s *Service) RecordViolation(sessionID, violationType, details, image string) (bool, error) {
	sess, err := s.store.GetSession(sessionID)
	if err != nil {
		return false, err
	}
	if sess.Status != model.StatusActive {
		return sess.Status == model.StatusTerminated, nil
	}

	entry := violationType
	if details != "" {
		entry = violationType + ": " + details
	}
	if err := s.store.AppendEvent(sessionID, model.ActionViolationDetected, entry); err != nil {
		return false, err
	}
	if image != "" {
		if err := s.store.AddEvidence(sessionID, violationType, image); err != nil {
			return false, err
		}
	}

	events, err := s.store.ListEvents(sessionID)
	if err != nil {
		return false, err
	}
	count := 0
	for _, e := range events {
		if e.Action == model.ActionViolationDetected {
			count++
		}
	}
	if count < MaxViolations {
		return false, nil
	}

	reason := fmt.Sprintf("%d proctoring violations", count)
	if err := s.terminate(sessionID, sess.Candidate.Email, reason); err != nil {
		return false, err
	}
	return true, nil
}

// Terminate ends an active session with the given reason and consumes
// the candidate's attempt.
func (s *Service) Terminate(sessionID, reason string) error {
	sess, err := s.store.GetSession(sessionID)
	if err != nil {
		return err
	}
	return s.terminate(sessionID, sess.Candidate.Email, reason)
}

func (s *Service) terminate(sessionID, email, reason string) error {
	if err := s.store.Terminate(sessionID, reason); err != nil {
		return err
	}
	// A terminated attempt counts as consumed, same as a submitted one.
	if err := s.store.Lock(email); err != nil {
		return err
	}
	s.logger.Warn("session terminated", "session", sessionID, "reason", reason)
	return nil
}

// Session returns the stored session.
func (s *Service) Session(sessionID string) (*model.Session, error) {
	return s.store.GetSession(sessionID)
}
