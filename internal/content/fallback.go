package content

import (
	"fmt"

	"github.com/evalueate/proctor/internal/model"
)

// Fallback returns the fixed, hand-authored question set for a section.
// It is the terminal recovery path for generation failures and must
// always produce a schema-valid, non-empty set.
func Fallback(id model.SectionID) []model.Question {
	switch id {
	case model.SectionMCQ:
		return fallbackMCQ()
	case model.SectionFITB:
		return fallbackFITB()
	case model.SectionCoding:
		return fallbackCoding()
	default:
		return nil
	}
}

func fallbackMCQ() []model.Question {
	questions := make([]model.Question, 0, MCQCount)
	for i := 1; i <= MCQCount; i++ {
		questions = append(questions, model.Question{
			ID:            i,
			Type:          model.TypeMCQ,
			Text:          fmt.Sprintf("Technical Assessment Question %d (Backup): Select the valid option for scalable architecture.", i),
			Options:       []string{"Microservices", "Monolith", "Serverless", "Hybrid"},
			CorrectAnswer: "0",
			Marks:         1,
		})
	}
	return questions
}

func fallbackFITB() []model.Question {
	items := []struct {
		text   string
		answer string
	}{
		{"The complexity of binary search is O(___).", "log n"},
		{"SQL command to remove a table is DROP ___.", "TABLE"},
		{"In the OSI model, TCP operates at the ___ layer.", "transport"},
		{"A stack follows the Last In, First ___ principle.", "Out"},
		{"The SQL keyword that removes duplicate rows from a result set is ___.", "DISTINCT"},
		{"HTTP status code 404 means Not ___.", "Found"},
		{"A scheduling policy that can interrupt a running process is called ___ scheduling.", "preemptive"},
		{"The Git command that joins two branch histories is git ___.", "merge"},
		{"The worst-case time complexity of quicksort is O(___).", "n^2"},
		{"A database transaction property set is abbreviated ___.", "ACID"},
	}
	questions := make([]model.Question, 0, len(items))
	for i, item := range items {
		questions = append(questions, model.Question{
			ID:            fitbIDBase + 1 + i,
			Type:          model.TypeFITB,
			Text:          item.text,
			CorrectAnswer: item.answer,
			Marks:         2,
		})
	}
	return questions
}

func fallbackCoding() []model.Question {
	problems := []string{
		"Problem 1: Implement a Balanced Binary Search Tree insertion logic.",
		"Problem 2: Optimize an API response handler for large datasets.",
	}
	questions := make([]model.Question, 0, len(problems))
	for i, text := range problems {
		examples := []model.Example{placeholderExample}
		questions = append(questions, model.Question{
			ID:       codingIDBase + 1 + i,
			Type:     model.TypeCoding,
			Text:     renderSampleCases(text, examples),
			Marks:    CodingMarks,
			Examples: examples,
		})
	}
	return questions
}
