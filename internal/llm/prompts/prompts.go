// Package prompts builds the provider prompts for section generation,
// coding grading, and feedback. Prompt text asks for compact JSON so
// responses stay inside output-token limits; the content package
// tolerates providers that drift from the requested shape anyway.
package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/evalueate/proctor/internal/model"
)

// jdLimit caps how much of the job description is embedded in a prompt.
const jdLimit = 300

// CodingRubricParts are the base/general/edge sub-scores of the coding
// rubric. They sum to the fixed coding question marks.
var CodingRubricParts = [3]int{5, 6, 9}

// CodingRubricScores returns every score the grading provider may
// legally return: the sorted subset sums of the rubric parts.
func CodingRubricScores() []int {
	seen := map[int]bool{0: true}
	for mask := 1; mask < 1<<len(CodingRubricParts); mask++ {
		sum := 0
		for i, part := range CodingRubricParts {
			if mask&(1<<i) != 0 {
				sum += part
			}
		}
		seen[sum] = true
	}
	scores := make([]int, 0, len(seen))
	for s := range seen {
		scores = append(scores, s)
	}
	sort.Ints(scores)
	return scores
}

func truncateJD(jd string) string {
	if len(jd) > jdLimit {
		return jd[:jdLimit]
	}
	return jd
}

// SectionPrompt returns the generation prompt for a section.
func SectionPrompt(id model.SectionID, jd string) string {
	switch id {
	case model.SectionMCQ:
		return MCQPrompt(jd)
	case model.SectionFITB:
		return FITBPrompt(jd)
	case model.SectionCoding:
		return CodingPrompt(jd)
	default:
		return ""
	}
}

// MCQPrompt asks for the 30-question multiple-choice section in compact
// key form (q/o/a/m).
func MCQPrompt(jd string) string {
	var sb strings.Builder
	sb.WriteString("Generate exactly 30 Hard MCQs for a technical assessment.\n")
	sb.WriteString("DISTRIBUTION:\n")
	sb.WriteString("- 10 Questions MUST cover Core CS Fundamentals: DSA, SQL, DBMS, Operating Systems, Networks, Software Engineering.\n")
	fmt.Fprintf(&sb, "- 20 Questions MUST cover the specific Job Description: %q.\n\n", truncateJD(jd))
	sb.WriteString("Formatting Rules:\n")
	sb.WriteString("1. Do NOT make the entire question bold. Use normal text weight.\n")
	sb.WriteString("2. Do NOT use asterisks (*) or markdown bolding for ANY words. Output plain text only.\n")
	sb.WriteString("3. Return Compact JSON Array.\n\n")
	sb.WriteString("Keys:\n")
	sb.WriteString("\"q\": Question text (Plain text)\n")
	sb.WriteString("\"o\": Array of 4 options\n")
	sb.WriteString("\"a\": Correct Option Index (0-3)\n")
	sb.WriteString("\"m\": Marks (default 1)\n")
	sb.WriteString("Strictly valid JSON. No Markdown.\n")
	return sb.String()
}

// FITBPrompt asks for the fill-in-the-blank section.
func FITBPrompt(jd string) string {
	var sb strings.Builder
	sb.WriteString("Generate 10 DISTINCT and UNIQUE Technical Fill-in-the-Blank questions.\n")
	sb.WriteString("DISTRIBUTION:\n")
	sb.WriteString("- 5 Questions MUST cover Core CS Fundamentals (DSA, DBMS, OS, Networks).\n")
	fmt.Fprintf(&sb, "- 5 Questions MUST cover: %q.\n\n", truncateJD(jd))
	sb.WriteString("Formatting Rules:\n")
	sb.WriteString("1. Ensure every question is unique. Do not repeat concepts.\n")
	sb.WriteString("2. Do NOT make the entire question bold.\n")
	sb.WriteString("3. Do NOT use asterisks (*) or markdown bolding.\n")
	sb.WriteString("4. Use '___' for the blank.\n\n")
	sb.WriteString("Format: JSON Array.\n")
	sb.WriteString("Keys: \"id\", \"type\": \"FITB\", \"text\", \"correctAnswer\", \"marks\": 2.\n")
	sb.WriteString("Strictly valid JSON. No Markdown.\n")
	return sb.String()
}

// CodingPrompt asks for the two coding problems.
func CodingPrompt(jd string) string {
	var sb strings.Builder
	sb.WriteString("Generate EXACTLY 2 distinct LeetCode Hard/Medium Coding Problems.\n")
	sb.WriteString("DISTRIBUTION:\n")
	sb.WriteString("- Question 1: Pure Data Structures & Algorithms (DSA) - e.g., Graph, Tree, DP, Trie.\n")
	fmt.Fprintf(&sb, "- Question 2: Job Description Specific Scenario related to: %q.\n\n", truncateJD(jd))
	sb.WriteString("Formatting Rules:\n")
	sb.WriteString("1. Split the Problem Statement into 2-3 distinct paragraphs using newlines (\\n\\n).\n")
	sb.WriteString("2. Do NOT make the entire text bold.\n")
	sb.WriteString("3. Do NOT use asterisks (*) or markdown bolding for ANY words. Output plain text only.\n\n")
	sb.WriteString("Format: JSON ARRAY containing exactly 2 objects.\n")
	sb.WriteString("[\n")
	sb.WriteString("  { \"type\": \"CODING\", \"text\": \"DSA Problem text...\", \"marks\": 20, \"examples\": [{\"input\": \"...\", \"output\": \"...\"}] },\n")
	sb.WriteString("  { \"type\": \"CODING\", \"text\": \"JD Specific Problem text...\", \"marks\": 20, \"examples\": [{\"input\": \"...\", \"output\": \"...\"}] }\n")
	sb.WriteString("]\n")
	sb.WriteString("Strictly valid JSON Array of length 2. No Markdown.\n")
	return sb.String()
}

// GradeCodingPrompt builds the rubric grading prompt for one coding
// answer. The provider is instructed to return a bare integer from the
// rubric's score set; the grader extracts it by pattern match.
func GradeCodingPrompt(problem, code string) string {
	parts := CodingRubricParts
	total := parts[0] + parts[1] + parts[2]

	scores := CodingRubricScores()
	tokens := make([]string, len(scores))
	for i, s := range scores {
		tokens[i] = fmt.Sprintf("%d", s)
	}

	var sb strings.Builder
	sb.WriteString("Act as a Strict Code Grader.\n")
	fmt.Fprintf(&sb, "Problem: %q\n", problem)
	fmt.Fprintf(&sb, "Student Code: %q\n\n", code)
	fmt.Fprintf(&sb, "Marking Schema (Max %d):\n", total)
	fmt.Fprintf(&sb, "- Base Case Correct: +%d Marks\n", parts[0])
	fmt.Fprintf(&sb, "- General Case Correct: +%d Marks\n", parts[1])
	fmt.Fprintf(&sb, "- Edge Case Correct: +%d Marks\n", parts[2])
	fmt.Fprintf(&sb, "Total = %d + %d + %d = %d.\n\n", parts[0], parts[1], parts[2], total)
	sb.WriteString("Task:\n")
	sb.WriteString("Analyze the code logic. Does it handle the base case? Does it handle the general logic? Does it handle edge cases (null, empty, large inputs)?\n")
	fmt.Fprintf(&sb, "Return ONLY the integer score (%s).\n", strings.Join(tokens, ", "))
	return sb.String()
}

// FeedbackPrompt builds the narrative feedback prompt for a finalized
// session.
func FeedbackPrompt(jd string, score, maxScore int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate a detailed technical feedback report for a candidate applying for the role: %q.\n", truncateJD(jd))
	fmt.Fprintf(&sb, "Score Achieved: %d / %d.\n\n", score, maxScore)
	sb.WriteString("Task:\n")
	sb.WriteString("1. Write a 3-4 line professional SUMMARY of their performance based on the score.\n")
	sb.WriteString("   - If score > 70%: Praise their strong technical grasp and problem-solving skills.\n")
	sb.WriteString("   - If score < 50%: Highlight gaps in core concepts and coding implementation.\n")
	sb.WriteString("2. List 3 Key STRENGTHS based on the role.\n")
	sb.WriteString("3. List 3 Areas of WEAKNESS/IMPROVEMENT.\n")
	sb.WriteString("4. Provide a 3-step ROADMAP to improve.\n\n")
	sb.WriteString("Output Format: JSON Object\n")
	sb.WriteString("{\n")
	sb.WriteString("  \"summary\": \"...\",\n")
	sb.WriteString("  \"strengths\": [\"...\", \"...\", \"...\"],\n")
	sb.WriteString("  \"weaknesses\": [\"...\", \"...\", \"...\"],\n")
	sb.WriteString("  \"roadmap\": [\"...\", \"...\", \"...\"]\n")
	sb.WriteString("}\n")
	sb.WriteString("Strictly valid JSON. No Markdown.\n")
	return sb.String()
}
