package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/evalueate/proctor/internal/model"
)

// CreateSession persists a new session and its fixed section skeleton in
// one transaction. The session id is an unguessable capability token;
// whoever holds it owns the attempt.
func (s *Store) CreateSession(cand model.Candidate, jobDescription string, sections []model.Section) (*model.Session, error) {
	sess := &model.Session{
		ID:             uuid.NewString(),
		Candidate:      cand,
		JobDescription: jobDescription,
		Sections:       sections,
		Status:         model.StatusActive,
		StartTime:      time.Now().UTC(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO sessions (id, candidate_name, candidate_email, job_description, status, start_time)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, cand.Name, cand.Email, jobDescription, sess.Status, sess.StartTime,
	)
	if err != nil {
		return nil, err
	}

	for i, sec := range sections {
		questionsJSON, err := json.Marshal(sec.Questions)
		if err != nil {
			return nil, fmt.Errorf("marshal section %s: %w", sec.ID, err)
		}
		_, err = tx.Exec(
			`INSERT INTO sections (session_id, position, section_id, title, duration_minutes, kind, pending, questions)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, i, sec.ID, sec.Title, sec.DurationMinutes, sec.Type, sec.Pending, string(questionsJSON),
		)
		if err != nil {
			return nil, err
		}
	}

	return sess, tx.Commit()
}

// GetSession loads a session with its sections in fixed order. Unknown
// ids return ErrNotFound.
func (s *Store) GetSession(id string) (*model.Session, error) {
	var (
		sess         model.Session
		answersJSON  string
		feedbackJSON string
		endTime      sql.NullTime
	)
	err := s.db.QueryRow(
		`SELECT id, candidate_name, candidate_email, job_description, status, answers,
		        final_score, max_score, s1_score, s2_score, s3_score, feedback, start_time, end_time
		 FROM sessions WHERE id = ?`, id,
	).Scan(
		&sess.ID, &sess.Candidate.Name, &sess.Candidate.Email, &sess.JobDescription, &sess.Status,
		&answersJSON, &sess.FinalScore, &sess.MaxScore,
		&sess.SectionScores.S1, &sess.SectionScores.S2, &sess.SectionScores.S3,
		&feedbackJSON, &sess.StartTime, &endTime,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if answersJSON != "" && answersJSON != "{}" {
		if err := json.Unmarshal([]byte(answersJSON), &sess.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers for %s: %w", id, err)
		}
	}
	if feedbackJSON != "" {
		var fb model.Feedback
		if err := json.Unmarshal([]byte(feedbackJSON), &fb); err != nil {
			return nil, fmt.Errorf("unmarshal feedback for %s: %w", id, err)
		}
		sess.Feedback = &fb
	}
	if endTime.Valid {
		t := endTime.Time
		sess.EndTime = &t
	}

	sess.Sections, err = s.sessionSections(id)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) sessionSections(sessionID string) ([]model.Section, error) {
	rows, err := s.db.Query(
		`SELECT section_id, title, duration_minutes, kind, pending, questions
		 FROM sections WHERE session_id = ? ORDER BY position`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []model.Section
	for rows.Next() {
		var (
			sec           model.Section
			questionsJSON string
		)
		if err := rows.Scan(&sec.ID, &sec.Title, &sec.DurationMinutes, &sec.Type, &sec.Pending, &questionsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(questionsJSON), &sec.Questions); err != nil {
			return nil, fmt.Errorf("unmarshal questions for %s/%s: %w", sessionID, sec.ID, err)
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

// SetSectionQuestions stores questions for a still-pending section and
// clears its pending flag. The write is a compare-and-set: if another
// writer populated the section first, the stored questions are returned
// unchanged, so exactly one question set ever persists per section.
func (s *Store) SetSectionQuestions(sessionID string, sectionID model.SectionID, questions []model.Question) ([]model.Question, error) {
	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		return nil, fmt.Errorf("marshal questions: %w", err)
	}

	res, err := s.db.Exec(
		`UPDATE sections SET questions = ?, pending = 0
		 WHERE session_id = ? AND section_id = ? AND pending = 1`,
		string(questionsJSON), sessionID, sectionID,
	)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 1 {
		return questions, nil
	}

	// Lost the race or the section was already populated: return what won.
	var storedJSON string
	err = s.db.QueryRow(
		`SELECT questions FROM sections WHERE session_id = ? AND section_id = ?`,
		sessionID, sectionID,
	).Scan(&storedJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var stored []model.Question
	if err := json.Unmarshal([]byte(storedJSON), &stored); err != nil {
		return nil, fmt.Errorf("unmarshal stored questions: %w", err)
	}
	return stored, nil
}

// SaveAnswers records the submitted answer map on the session.
func (s *Store) SaveAnswers(sessionID string, answers model.AnswerSet) error {
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	res, err := s.db.Exec(`UPDATE sessions SET answers = ? WHERE id = ?`, string(answersJSON), sessionID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Finalize persists the graded outcome and completes the session. A
// session that already holds a result returns ErrAlreadyFinalized and is
// left untouched, so a second submit can never recompute or overwrite.
func (s *Store) Finalize(sessionID string, result model.Result) error {
	feedbackJSON, err := json.Marshal(result.Feedback)
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status model.SessionStatus
	err = tx.QueryRow(`SELECT status FROM sessions WHERE id = ?`, sessionID).Scan(&status)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if status == model.StatusCompleted {
		return ErrAlreadyFinalized
	}

	_, err = tx.Exec(
		`UPDATE sessions
		 SET status = ?, final_score = ?, max_score = ?, s1_score = ?, s2_score = ?, s3_score = ?,
		     feedback = ?, end_time = ?
		 WHERE id = ?`,
		model.StatusCompleted, result.Score, result.MaxScore,
		result.SectionScores.S1, result.SectionScores.S2, result.SectionScores.S3,
		string(feedbackJSON), time.Now().UTC(), sessionID,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Terminate moves an active session to TERMINATED and records the reason
// in the event log. Sessions already completed or terminated are left
// as they are.
func (s *Store) Terminate(sessionID, reason string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status model.SessionStatus
	err = tx.QueryRow(`SELECT status FROM sessions WHERE id = ?`, sessionID).Scan(&status)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if status != model.StatusActive {
		return tx.Commit()
	}

	_, err = tx.Exec(
		`UPDATE sessions SET status = ?, end_time = ? WHERE id = ?`,
		model.StatusTerminated, time.Now().UTC(), sessionID,
	)
	if err != nil {
		return err
	}
	_, err = tx.Exec(
		`INSERT INTO proctor_events (session_id, at, action, details) VALUES (?, ?, ?, ?)`,
		sessionID, time.Now().UTC(), model.ActionSessionTerminated, reason,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// ListSessions returns admin summaries for all sessions, newest first.
func (s *Store) ListSessions() ([]model.SessionSummary, error) {
	rows, err := s.db.Query(
		`SELECT s.id, s.candidate_name, s.candidate_email, s.final_score, s.max_score,
		        s.s1_score, s.s2_score, s.s3_score, s.status, s.start_time, s.feedback,
		        (SELECT COUNT(*) FROM evidence e WHERE e.session_id = s.id)
		 FROM sessions s ORDER BY s.start_time DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []model.SessionSummary
	for rows.Next() {
		var (
			sum          model.SessionSummary
			feedbackJSON string
		)
		err := rows.Scan(
			&sum.SessionID, &sum.CandidateName, &sum.Email, &sum.Score, &sum.MaxScore,
			&sum.SectionScores.S1, &sum.SectionScores.S2, &sum.SectionScores.S3,
			&sum.Status, &sum.StartTime, &feedbackJSON, &sum.EvidenceCount,
		)
		if err != nil {
			return nil, err
		}
		if feedbackJSON != "" {
			var fb model.Feedback
			if err := json.Unmarshal([]byte(feedbackJSON), &fb); err == nil {
				sum.Feedback = &fb
			}
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
