// Package rubric inspects rubric criteria for structural quality problems.
package rubric

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// ErrInvalidInput indicates a criterion without text was passed to Validate.
var ErrInvalidInput = errors.New("invalid rubric input")

// Severity levels reported for issues.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue kinds.
const (
	IssueStacked       = "stacked"
	IssueSelfContained = "self_contained"
	IssueVague         = "vague"
	IssueOverlap       = "overlap"
	IssueCount         = "count"
	IssueDiversity     = "diversity"
	IssueBalance       = "balance"
)

// Difficulty estimates.
const (
	DifficultyTooEasy     = "too_easy"
	DifficultyTooHard     = "too_hard"
	DifficultyAppropriate = "appropriate"
)

// GeneralCriterionID marks issues that concern the rubric as a whole.
const GeneralCriterionID = "general"

const (
	minCriteria        = 10
	maxCriteria        = 30
	minDiversity       = 0.3
	minPositiveRatio   = 0.2
	maxPositiveRatio   = 0.8
	overlapThreshold   = 0.7
	hardCriteriaCount  = 25
	hardNegativeRatio  = 0.6
	defaultCategory    = "uncategorized"
	typeObjective      = "objective"
	typeSubjective     = "subjective"
	minDiversityTarget = 5.0
)

// Criterion is a single rubric statement submitted for validation.
type Criterion struct {
	ID         string `json:"id"`
	Criterion  string `json:"criterion"`
	IsPositive bool   `json:"isPositive"`
	Category   string `json:"category,omitempty"`
	Type       string `json:"type,omitempty"`
}

// Issue describes a single quality problem.
type Issue struct {
	CriterionID string `json:"criterionId"`
	Kind        string `json:"type"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	RelatedID   string `json:"relatedCriterionId,omitempty"`
}

// Metrics aggregates rubric-level statistics.
type Metrics struct {
	TotalCount      int      `json:"totalCount"`
	PositiveCount   int      `json:"positiveCount"`
	NegativeCount   int      `json:"negativeCount"`
	ObjectiveCount  int      `json:"objectiveCount"`
	SubjectiveCount int      `json:"subjectiveCount"`
	Categories      []string `json:"categories"`
	DiversityScore  float64  `json:"diversityScore"`
	Difficulty      string   `json:"estimatedDifficulty"`
}

// Report is the outcome of Validate.
type Report struct {
	Issues  []Issue `json:"issues"`
	Metrics Metrics `json:"metrics"`
	IsValid bool    `json:"isValid"`
}

var (
	// Each "and" is tested against its own neighbours so an exempt pair does
	// not hide a conjunction that follows it.
	andPattern        = regexp.MustCompile(`\band\b`)
	wordBeforePattern = regexp.MustCompile(`\b([a-z0-9]+)\s+$`)
	wordAfterPattern  = regexp.MustCompile(`^\s+([a-z0-9]+)\b`)
	phrasePatterns    = []*regexp.Regexp{
		regexp.MustCompile(`\bas well as\b`),
		regexp.MustCompile(`\bin addition to\b`),
		regexp.MustCompile(`\w\s*;\s*\w`),
	}
	numericPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

	referentialPattern = regexp.MustCompile(`\b(mentions?|references?|discusses|addresses)\s+the\s+\w+\s+of\b`)
	concretePattern    = regexp.MustCompile(`\d|"[^"]+"|'[^']+'|\b(is|are|was|were|equals?)\b`)

	vaguePattern     = regexp.MustCompile(`\b(appropriate|appropriately|adequate|adequately|effective|effectively|good|sufficient|sufficiently|reasonable|reasonably|proper|properly|relevant|clear|clearly|well|nice|helpful|comprehensive|thorough|detailed|meaningful|significant|robust)\b`)
	qualifierPattern = regexp.MustCompile(`\b(at least|at most|exactly|no more than|no fewer than|no less than|more than|fewer than|less than|up to|minimum of|maximum of)\s+\d+|\bbetween\s+\d+(\.\d+)?\s+and\s+\d+`)

	objectivePattern = regexp.MustCompile(`\d|\b(exact|exactly|precise|precisely|true|false|first|second|third|fourth|fifth|last|final)\b`)

	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
)

var idiomaticPairs = map[string]struct{}{
	"pros and cons":            {},
	"black and white":          {},
	"trial and error":          {},
	"back and forth":           {},
	"terms and conditions":     {},
	"supply and demand":        {},
	"question and answer":      {},
	"research and development": {},
	"input and output":         {},
	"strengths and weaknesses": {},
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "that": {}, "this": {}, "with": {}, "from": {}, "are": {},
	"was": {}, "were": {}, "has": {}, "have": {}, "had": {}, "not": {}, "but": {}, "its": {},
	"their": {}, "they": {}, "them": {}, "which": {}, "when": {}, "what": {}, "where": {},
	"who": {}, "how": {}, "why": {}, "does": {}, "did": {}, "into": {}, "onto": {}, "than": {},
	"then": {}, "there": {}, "these": {}, "those": {}, "any": {}, "all": {}, "each": {},
	"response": {}, "answer": {}, "should": {}, "must": {}, "will": {}, "can": {}, "about": {},
}

// Shape buckets in match priority order; the first substring hit wins.
var shapeBuckets = []struct {
	name   string
	needle string
}{
	{"mentions", "mention"},
	{"includes", "include"},
	{"provides", "provide"},
	{"explains", "explain"},
	{"format", "format"},
	{"structure", "structure"},
	{"avoid", "avoid"},
	{"negative", "not"},
}

const otherBucket = "other"

// Validate inspects criteria and reports issues and metrics. It fails with
// ErrInvalidInput when any criterion has no text.
func Validate(criteria []Criterion) (Report, error) {
	for i, c := range criteria {
		if strings.TrimSpace(c.Criterion) == "" {
			return Report{}, fmt.Errorf("%w: criterion %d has no text", ErrInvalidInput, i)
		}
	}

	issues := make([]Issue, 0)
	for _, c := range criteria {
		issues = append(issues, checkCriterion(c)...)
	}
	issues = append(issues, checkOverlap(criteria)...)

	metrics := computeMetrics(criteria)
	if len(criteria) > 0 {
		issues = append(issues, checkAggregate(metrics)...)
	}

	valid := true
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			valid = false
			break
		}
	}

	return Report{Issues: issues, Metrics: metrics, IsValid: valid}, nil
}

func checkCriterion(c Criterion) []Issue {
	text := strings.ToLower(c.Criterion)
	var issues []Issue

	if isStacked(text) {
		issues = append(issues, Issue{
			CriterionID: c.ID,
			Kind:        IssueStacked,
			Severity:    SeverityError,
			Message:     "criterion tests more than one aspect; split it into separate criteria",
		})
	}

	if referentialPattern.MatchString(text) && !concretePattern.MatchString(text) {
		issues = append(issues, Issue{
			CriterionID: c.ID,
			Kind:        IssueSelfContained,
			Severity:    SeverityWarning,
			Message:     "criterion refers to a value without stating it; include the expected value",
		})
	}

	if vaguePattern.MatchString(text) && !qualifierPattern.MatchString(text) {
		issues = append(issues, Issue{
			CriterionID: c.ID,
			Kind:        IssueVague,
			Severity:    SeverityWarning,
			Message:     fmt.Sprintf("criterion uses subjective language (%q); make it measurable", vaguePattern.FindString(text)),
		})
	}

	return issues
}

func isStacked(text string) bool {
	for _, loc := range andPattern.FindAllStringIndex(text, -1) {
		before := wordBeforePattern.FindStringSubmatch(text[:loc[0]])
		after := wordAfterPattern.FindStringSubmatch(text[loc[1]:])
		if before == nil || after == nil {
			continue
		}
		if _, ok := idiomaticPairs[before[1]+" and "+after[1]]; ok {
			continue
		}
		if numericPattern.MatchString(before[1]) && numericPattern.MatchString(after[1]) {
			continue
		}
		return true
	}
	for _, pattern := range phrasePatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

func checkOverlap(criteria []Criterion) []Issue {
	concepts := make([]map[string]struct{}, len(criteria))
	for i, c := range criteria {
		concepts[i] = keyConcepts(c.Criterion)
	}

	var issues []Issue
	for i := 0; i < len(criteria); i++ {
		for j := i + 1; j < len(criteria); j++ {
			ratio := overlapRatio(concepts[i], concepts[j])
			if ratio <= overlapThreshold {
				continue
			}
			issues = append(issues, Issue{
				CriterionID: criteria[i].ID,
				Kind:        IssueOverlap,
				Severity:    SeverityError,
				Message:     fmt.Sprintf("criterion overlaps with criterion %q (%.0f%% shared concepts)", criteria[j].ID, ratio*100),
				RelatedID:   criteria[j].ID,
			})
		}
	}
	return issues
}

func keyConcepts(text string) map[string]struct{} {
	normalized := nonAlphanumeric.ReplaceAllString(strings.ToLower(text), " ")
	concepts := make(map[string]struct{})
	for _, word := range strings.Fields(normalized) {
		if len(word) <= 2 {
			continue
		}
		if _, stop := stopwords[word]; stop {
			continue
		}
		concepts[word] = struct{}{}
	}
	return concepts
}

func overlapRatio(a, b map[string]struct{}) float64 {
	smaller := len(a)
	if len(b) < smaller {
		smaller = len(b)
	}
	if smaller == 0 {
		return 0
	}
	shared := 0
	for word := range a {
		if _, ok := b[word]; ok {
			shared++
		}
	}
	return float64(shared) / float64(smaller)
}

func checkAggregate(m Metrics) []Issue {
	var issues []Issue

	switch {
	case m.TotalCount < minCriteria:
		issues = append(issues, generalIssue(IssueCount, fmt.Sprintf("rubric has too few criteria (%d); aim for at least %d", m.TotalCount, minCriteria)))
	case m.TotalCount > maxCriteria:
		issues = append(issues, generalIssue(IssueCount, fmt.Sprintf("rubric has %d criteria, which may be excessive; aim for at most %d", m.TotalCount, maxCriteria)))
	}

	if m.DiversityScore < minDiversity {
		issues = append(issues, generalIssue(IssueDiversity, fmt.Sprintf("criteria are too similar in shape (diversity %.2f)", m.DiversityScore)))
	}

	ratio := safeRatio(m.PositiveCount, m.TotalCount)
	if ratio < minPositiveRatio || ratio > maxPositiveRatio {
		issues = append(issues, generalIssue(IssueBalance, fmt.Sprintf("positive criteria make up %.0f%% of the rubric; keep between 20%% and 80%%", ratio*100)))
	}

	return issues
}

func generalIssue(kind, message string) Issue {
	return Issue{CriterionID: GeneralCriterionID, Kind: kind, Severity: SeverityWarning, Message: message}
}

func computeMetrics(criteria []Criterion) Metrics {
	m := Metrics{TotalCount: len(criteria), Categories: []string{}}
	categories := make(map[string]struct{})

	for _, c := range criteria {
		if c.IsPositive {
			m.PositiveCount++
		} else {
			m.NegativeCount++
		}

		if isObjective(c) {
			m.ObjectiveCount++
		} else {
			m.SubjectiveCount++
		}

		category := strings.TrimSpace(c.Category)
		if category == "" {
			category = defaultCategory
		}
		categories[category] = struct{}{}
	}

	for category := range categories {
		m.Categories = append(m.Categories, category)
	}
	sort.Strings(m.Categories)

	m.DiversityScore = DiversityScore(criteria)
	m.Difficulty = estimateDifficulty(m)
	return m
}

func isObjective(c Criterion) bool {
	switch strings.ToLower(strings.TrimSpace(c.Type)) {
	case typeObjective:
		return true
	case typeSubjective:
		return false
	}
	return objectivePattern.MatchString(strings.ToLower(c.Criterion))
}

// ShapeBucket returns the lexical shape bucket a criterion falls into.
func ShapeBucket(text string) string {
	lower := strings.ToLower(text)
	for _, bucket := range shapeBuckets {
		if strings.Contains(lower, bucket.needle) {
			return bucket.name
		}
	}
	return otherBucket
}

// DiversityScore measures how many shape buckets the criteria cover. It is a
// lexical proxy only; criteria of the same semantic type with different verbs
// land in different buckets.
func DiversityScore(criteria []Criterion) float64 {
	if len(criteria) == 0 {
		return 0
	}
	used := make(map[string]struct{})
	for _, c := range criteria {
		used[ShapeBucket(c.Criterion)] = struct{}{}
	}

	target := math.Max(minDiversityTarget, 0.5*float64(len(criteria)))
	target = math.Min(target, float64(len(shapeBuckets)+1))
	return math.Min(1, float64(len(used))/target)
}

func estimateDifficulty(m Metrics) string {
	switch {
	case m.TotalCount < minCriteria || m.DiversityScore < minDiversity:
		return DifficultyTooEasy
	case m.TotalCount > hardCriteriaCount && safeRatio(m.NegativeCount, m.TotalCount) > hardNegativeRatio:
		return DifficultyTooHard
	default:
		return DifficultyAppropriate
	}
}

func safeRatio(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}
