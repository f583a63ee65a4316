package store

import (
	"errors"
	"testing"

	"github.com/evalueate/proctor/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSections() []model.Section {
	sections := model.DefaultSections()
	sections[0].Questions = []model.Question{
		{ID: 1, Type: model.TypeMCQ, Text: "Pick one", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: "2", Marks: 1},
		{ID: 2, Type: model.TypeMCQ, Text: "Pick another", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: "0", Marks: 1},
	}
	sections[0].Pending = false
	return sections
}

func createTestSession(t *testing.T, s *Store) *model.Session {
	t.Helper()
	sess, err := s.CreateSession(
		model.Candidate{Name: "Test User", Email: "test@user.com"},
		"Backend engineer",
		testSections(),
	)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess
}

func TestCandidateDirectory(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateCandidate("test@user.com", "TEST1234"); err != nil {
		t.Fatalf("CreateCandidate: %v", err)
	}

	tests := []struct {
		name  string
		email string
		code  string
		want  bool
	}{
		{"correct code", "test@user.com", "TEST1234", true},
		{"wrong code", "test@user.com", "WRONG", false},
		{"wrong code same length", "test@user.com", "TEST9999", false},
		{"unknown email", "nobody@user.com", "TEST1234", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := s.Authorize(tt.email, tt.code)
			if err != nil {
				t.Fatalf("Authorize: %v", err)
			}
			if ok != tt.want {
				t.Errorf("Authorize(%q, %q) = %v, want %v", tt.email, tt.code, ok, tt.want)
			}
		})
	}

	// Re-provisioning rotates the code in place.
	if err := s.CreateCandidate("test@user.com", "NEWCODE1"); err != nil {
		t.Fatalf("CreateCandidate rotate: %v", err)
	}
	if ok, _ := s.Authorize("test@user.com", "TEST1234"); ok {
		t.Error("old code still accepted after rotation")
	}
	if ok, _ := s.Authorize("test@user.com", "NEWCODE1"); !ok {
		t.Error("rotated code rejected")
	}

	entries, err := s.ListCandidates()
	if err != nil {
		t.Fatalf("ListCandidates: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	count, err := s.CandidateCount()
	if err != nil {
		t.Fatalf("CandidateCount: %v", err)
	}
	if count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}
}

func TestLockLifecycle(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateCandidate("test@user.com", "TEST1234"); err != nil {
		t.Fatalf("CreateCandidate: %v", err)
	}

	locked, err := s.IsLocked("test@user.com")
	if err != nil {
		t.Fatalf("IsLocked: %v", err)
	}
	if locked {
		t.Error("new candidate should not be locked")
	}

	// Lock is idempotent.
	for i := 0; i < 2; i++ {
		if err := s.Lock("test@user.com"); err != nil {
			t.Fatalf("Lock: %v", err)
		}
	}
	if locked, _ := s.IsLocked("test@user.com"); !locked {
		t.Error("candidate should be locked")
	}

	changed, err := s.Unlock("test@user.com")
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if !changed {
		t.Error("first unlock should report reactivation")
	}
	changed, err = s.Unlock("test@user.com")
	if err != nil {
		t.Fatalf("Unlock again: %v", err)
	}
	if changed {
		t.Error("second unlock should report not-locked")
	}
	if locked, _ := s.IsLocked("test@user.com"); locked {
		t.Error("candidate should be unlocked")
	}

	// Unknown email is treated as unlocked, never an error.
	if locked, err := s.IsLocked("nobody@user.com"); err != nil || locked {
		t.Errorf("IsLocked(unknown) = %v, %v", locked, err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	sess := createTestSession(t, s)

	if sess.ID == "" {
		t.Fatal("session id not generated")
	}
	if sess.Status != model.StatusActive {
		t.Errorf("expected ACTIVE, got %q", sess.Status)
	}

	got, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Candidate.Email != "test@user.com" {
		t.Errorf("unexpected candidate email %q", got.Candidate.Email)
	}
	if len(got.Sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(got.Sections))
	}
	for i, want := range model.SectionOrder {
		if got.Sections[i].ID != want {
			t.Errorf("section %d: got %q, want %q", i, got.Sections[i].ID, want)
		}
	}
	if got.Sections[0].Pending || len(got.Sections[0].Questions) != 2 {
		t.Error("section 1 should be populated at creation")
	}
	if !got.Sections[1].Pending || len(got.Sections[1].Questions) != 0 {
		t.Error("section 2 should start pending and empty")
	}
	if !got.Sections[2].Pending || len(got.Sections[2].Questions) != 0 {
		t.Error("section 3 should start pending and empty")
	}

	if _, err := s.GetSession("no-such-session"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetSectionQuestions(t *testing.T) {
	s := newTestStore(t)
	sess := createTestSession(t, s)

	first := []model.Question{
		{ID: 8000, Type: model.TypeFITB, Text: "A ___", CorrectAnswer: "x", Marks: 2},
		{ID: 8001, Type: model.TypeFITB, Text: "B ___", CorrectAnswer: "y", Marks: 2},
	}
	stored, err := s.SetSectionQuestions(sess.ID, model.SectionFITB, first)
	if err != nil {
		t.Fatalf("SetSectionQuestions: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 questions stored, got %d", len(stored))
	}

	// A second write must not replace the first set.
	second := []model.Question{{ID: 8000, Type: model.TypeFITB, Text: "DIFFERENT", CorrectAnswer: "z", Marks: 2}}
	stored, err = s.SetSectionQuestions(sess.ID, model.SectionFITB, second)
	if err != nil {
		t.Fatalf("SetSectionQuestions repeat: %v", err)
	}
	if len(stored) != 2 || stored[0].Text != "A ___" {
		t.Errorf("repeat write replaced stored questions: %+v", stored)
	}

	got, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	sec := got.SectionByID(model.SectionFITB)
	if sec.Pending {
		t.Error("section should no longer be pending")
	}
	if len(sec.Questions) != 2 || sec.Questions[0].CorrectAnswer != "x" {
		t.Errorf("persisted questions wrong: %+v", sec.Questions)
	}

	if _, err := s.SetSectionQuestions("no-such-session", model.SectionFITB, first); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFinalize(t *testing.T) {
	s := newTestStore(t)
	sess := createTestSession(t, s)

	answers := model.AnswerSet{"1": "2", "2": "0"}
	if err := s.SaveAnswers(sess.ID, answers); err != nil {
		t.Fatalf("SaveAnswers: %v", err)
	}

	result := model.Result{
		Score:         2,
		MaxScore:      2,
		SectionScores: model.SectionScores{S1: 2},
		Feedback: model.Feedback{
			Summary:    "Solid fundamentals.",
			Strengths:  []string{"Accuracy"},
			Weaknesses: []string{"Coding depth"},
			Roadmap:    []string{"Practice system design"},
		},
	}
	if err := s.Finalize(sess.ID, result); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	got, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != model.StatusCompleted {
		t.Errorf("expected COMPLETED, got %q", got.Status)
	}
	if got.FinalScore != 2 || got.MaxScore != 2 || got.SectionScores.S1 != 2 {
		t.Errorf("scores not persisted: %+v", got)
	}
	if got.Feedback == nil || got.Feedback.Summary != "Solid fundamentals." {
		t.Errorf("feedback not persisted: %+v", got.Feedback)
	}
	if got.EndTime == nil {
		t.Error("end time not set")
	}
	if got.Answers.Get(1) != "2" {
		t.Errorf("answers not persisted: %+v", got.Answers)
	}

	// A second finalize must not recompute or overwrite.
	err = s.Finalize(sess.ID, model.Result{Score: 99})
	if !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}
	got, _ = s.GetSession(sess.ID)
	if got.FinalScore != 2 {
		t.Errorf("second finalize changed the score: %d", got.FinalScore)
	}

	if err := s.Finalize("no-such-session", result); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTerminate(t *testing.T) {
	s := newTestStore(t)
	sess := createTestSession(t, s)

	if err := s.Terminate(sess.ID, "3 focus-loss violations"); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	got, _ := s.GetSession(sess.ID)
	if got.Status != model.StatusTerminated {
		t.Errorf("expected TERMINATED, got %q", got.Status)
	}

	events, err := s.ListEvents(sess.ID)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 || events[0].Action != model.ActionSessionTerminated {
		t.Errorf("termination not logged: %+v", events)
	}
	if events[0].Details != "3 focus-loss violations" {
		t.Errorf("unexpected details %q", events[0].Details)
	}

	// Terminating again is a no-op.
	if err := s.Terminate(sess.ID, "again"); err != nil {
		t.Fatalf("Terminate again: %v", err)
	}
	events, _ = s.ListEvents(sess.ID)
	if len(events) != 1 {
		t.Errorf("expected 1 event after repeat terminate, got %d", len(events))
	}

	// A completed session stays completed.
	done := createTestSession(t, s)
	if err := s.Finalize(done.ID, model.Result{}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := s.Terminate(done.ID, "late"); err != nil {
		t.Fatalf("Terminate completed: %v", err)
	}
	got, _ = s.GetSession(done.ID)
	if got.Status != model.StatusCompleted {
		t.Errorf("terminate changed a completed session to %q", got.Status)
	}

	if err := s.Terminate("no-such-session", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestProctorLog(t *testing.T) {
	s := newTestStore(t)
	sess := createTestSession(t, s)

	actions := []string{
		model.ActionSessionStarted,
		model.ActionViolationDetected,
		model.ActionViolationDetected,
		model.ActionSubmitted,
	}
	for i, a := range actions {
		if err := s.AppendEvent(sess.ID, a, ""); err != nil {
			t.Fatalf("AppendEvent %d: %v", i, err)
		}
	}

	events, err := s.ListEvents(sess.ID)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != len(actions) {
		t.Fatalf("expected %d events, got %d", len(actions), len(events))
	}
	for i, e := range events {
		if e.Action != actions[i] {
			t.Errorf("event %d: got %q, want %q (insertion order broken)", i, e.Action, actions[i])
		}
	}

	if err := s.AppendEvent("no-such-session", "X", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEvidence(t *testing.T) {
	s := newTestStore(t)
	sess := createTestSession(t, s)

	if err := s.AddEvidence(sess.ID, "TAB_SWITCH", "data:image/jpeg;base64,AAAA"); err != nil {
		t.Fatalf("AddEvidence: %v", err)
	}
	if err := s.AddEvidence(sess.ID, "FACE_NOT_VISIBLE", "data:image/jpeg;base64,BBBB"); err != nil {
		t.Fatalf("AddEvidence: %v", err)
	}

	captures, err := s.ListEvidence(sess.ID)
	if err != nil {
		t.Fatalf("ListEvidence: %v", err)
	}
	if len(captures) != 2 {
		t.Fatalf("expected 2 captures, got %d", len(captures))
	}
	if captures[0].Type != "TAB_SWITCH" || captures[1].Type != "FACE_NOT_VISIBLE" {
		t.Errorf("capture order broken: %+v", captures)
	}

	summaries, err := s.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	if summaries[0].EvidenceCount != 2 {
		t.Errorf("expected evidence count 2, got %d", summaries[0].EvidenceCount)
	}

	if err := s.AddEvidence("no-such-session", "X", "img"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestExportAllSessions(t *testing.T) {
	s := newTestStore(t)
	sess := createTestSession(t, s)
	if err := s.AppendEvent(sess.ID, model.ActionSessionStarted, ""); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if err := s.Finalize(sess.ID, model.Result{Score: 1, MaxScore: 2, Feedback: model.Feedback{Summary: "ok"}}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	entries, err := s.ExportAllSessions()
	if err != nil {
		t.Fatalf("ExportAllSessions: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Session.ID != sess.ID || e.Session.FinalScore != 1 {
		t.Errorf("unexpected export session: %+v", e.Session)
	}
	if len(e.Logs) != 1 {
		t.Errorf("expected 1 log entry, got %d", len(e.Logs))
	}
}
