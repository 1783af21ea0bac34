package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/rubric-review-api/internal/models"
)

const rubricGradingSystemPrompt = `You are a senior reviewer who audits how people refine evaluation rubrics.
A rubric is a list of binary criteria. Good criteria are atomic, self-contained, specific and
mutually exclusive. You judge the quality of the edits a person made to an AI-generated rubric
and the justifications they gave. Respond with a single JSON object and nothing else.`

const promptGradingSystemPrompt = `You are a senior reviewer who assesses task prompts written for
language model evaluation. A strong prompt is unambiguous, self-contained, states constraints and
expected output, and is hard enough to discriminate between good and weak answers. Respond with a
single JSON object and nothing else.`

const improvementsSystemPrompt = `You are a senior reviewer who rewrites task prompts and rubrics.
Given a prompt, the final rubric and a prior assessment, produce an improved prompt and an improved
rubric of atomic, self-contained binary criteria. Respond with a single JSON object and nothing else.`

const rubricGenerationSystemPrompt = `You write grading rubrics for task prompts. Each criterion is a
single binary check that is atomic, self-contained and specific. Mix positive criteria (credit when
true) with negative criteria (penalty when true). Respond with a single JSON object and nothing else.`

// orderedCriteria lists AI-generated criteria by original position followed by
// user-added criteria by final position.
func orderedCriteria(criteria []models.Criterion) []models.Criterion {
	ordered := append([]models.Criterion(nil), criteria...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Source != ordered[j].Source {
			return ordered[i].Source == models.CriterionSourceAI
		}
		return ordered[i].Order < ordered[j].Order
	})
	return ordered
}

func polarity(positive bool) string {
	if positive {
		return "+"
	}
	return "-"
}

func writeOriginalRubric(b *strings.Builder, criteria []models.Criterion) {
	b.WriteString("ORIGINAL RUBRIC (AI generated):\n")
	n := 0
	for _, c := range orderedCriteria(criteria) {
		if c.Source != models.CriterionSourceAI {
			continue
		}
		n++
		fmt.Fprintf(b, "%d. [%s] %s (id: %s)\n", n, polarity(c.IsPositive), c.Text, c.OriginalID)
	}
	if n == 0 {
		b.WriteString("(none)\n")
	}
}

func writeActions(b *strings.Builder, actions []models.CriterionAction) {
	b.WriteString("\nUSER ACTIONS (chronological):\n")
	ordered := append([]models.CriterionAction(nil), actions...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Timestamp.Before(ordered[j].Timestamp) })
	if len(ordered) == 0 {
		b.WriteString("(none)\n")
	}
	for i, a := range ordered {
		fmt.Fprintf(b, "%d. %s item %s\n", i+1, strings.ToUpper(a.Type), a.ItemID)
		if a.PreviousText != "" {
			fmt.Fprintf(b, "   before: %s\n", a.PreviousText)
		}
		if a.NewText != "" {
			fmt.Fprintf(b, "   after: %s\n", a.NewText)
		}
		fmt.Fprintf(b, "   justification: %s\n", a.Justification)
	}
}

func writeFinalRubric(b *strings.Builder, criteria []models.Criterion) {
	b.WriteString("\nFINAL RUBRIC:\n")
	for i, c := range orderedCriteria(criteria) {
		source := "[AI]"
		if c.Source == models.CriterionSourceUser {
			source = "[USER]"
		}
		status := ""
		switch c.Status {
		case models.CriterionStatusEdited:
			status = " [EDITED]"
		case models.CriterionStatusDeleted:
			status = " [DELETED]"
		}
		fmt.Fprintf(b, "%d. %s%s [%s] %s\n", i+1, source, status, polarity(c.IsPositive), c.CurrentText())
	}
}

func writeSummary(b *strings.Builder, s models.Submission) {
	fmt.Fprintf(b, "\nSUMMARY: original=%d final=%d added=%d edited=%d deleted=%d actions=%d\n",
		s.OriginalCount, s.FinalCount, s.AddedCount, s.EditedCount, s.DeletedCount, len(s.Actions))
}

const gradeResponseShape = `{
  "score": <number 0-100, bonus points may push it above 100>,
  "grade": "<letter grade A-F>",
  "breakdown": {"<dimension>": <number>},
  "strengths": ["..."],
  "weaknesses": ["..."],
  "penalties": ["..."],
  "summary": "<two or three sentences>"
}`

func buildRubricGradingPrompt(s models.Submission) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TASK PROMPT:\n%s\n\n", s.Prompt)
	writeOriginalRubric(&b, s.Criteria)
	writeActions(&b, s.Actions)
	writeFinalRubric(&b, s.Criteria)
	writeSummary(&b, s)
	b.WriteString("\nGrade the rubric refinement. Score dimensions: atomicity, self-containment, specificity, ")
	b.WriteString("coverage, polarity balance and justification quality. Award up to 10 bonus points for ")
	b.WriteString("exceptional justifications. Return JSON with this shape:\n")
	b.WriteString(gradeResponseShape)
	b.WriteString("\n")
	return b.String()
}

func buildPromptGradingPrompt(s models.Submission) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TASK PROMPT:\n%s\n\n", s.Prompt)
	writeFinalRubric(&b, s.Criteria)
	writeSummary(&b, s)
	b.WriteString("\nGrade the task prompt itself. Score dimensions: clarity, specificity, constraints, ")
	b.WriteString("difficulty and evaluability. Return JSON with this shape:\n")
	b.WriteString(gradeResponseShape)
	b.WriteString("\n")
	return b.String()
}

func buildImprovementsPrompt(s models.Submission, grading *models.GradingResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TASK PROMPT:\n%s\n\n", s.Prompt)
	writeFinalRubric(&b, s.Criteria)
	writeSummary(&b, s)
	fmt.Fprintf(&b, "\nRUBRIC ASSESSMENT: score=%.0f grade=%s\n", grading.Score, grading.Grade)
	for _, w := range grading.Weaknesses {
		fmt.Fprintf(&b, "- weakness: %s\n", w)
	}
	if grading.PromptGrade != nil {
		fmt.Fprintf(&b, "PROMPT ASSESSMENT: score=%.0f grade=%s\n", grading.PromptGrade.Score, grading.PromptGrade.Grade)
		for _, w := range grading.PromptGrade.Weaknesses {
			fmt.Fprintf(&b, "- weakness: %s\n", w)
		}
	}
	b.WriteString(`
Return JSON with this shape:
{
  "improvedPrompt": "<rewritten prompt>",
  "improvedCriteria": [{"criterion": "...", "isPositive": true, "rationale": "..."}],
  "rationale": "<what changed and why>"
}
`)
	return b.String()
}

func buildRubricGenerationPrompt(prompt string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TASK PROMPT:\n%s\n\n", prompt)
	b.WriteString("Write between 10 and 20 criteria. Roughly a third should be negative. Use varied ")
	b.WriteString("openings (mentions, includes, provides, explains, format, structure, avoids). ")
	b.WriteString("Return JSON with this shape:\n")
	b.WriteString(`{"rubricItems": [{"id": "c1", "criterion": "...", "isPositive": true, "category": "...", "type": "objective"}]}`)
	b.WriteString("\n")
	return b.String()
}
