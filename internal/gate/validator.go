package gate

import (
	"fmt"
	"strings"

	"civium.app/pipeline/internal/generator"
)

const (
	minTitleLen       = 8
	maxTitleLen       = 160
	minSummaryLen     = 20
	maxSummaryLen     = 500
	minDescriptionLen = 80
)

// Validate checks a generated candidate for structural completeness.
// It returns a list of human-readable problems; an empty list means
// the candidate passes.
func Validate(c generator.Candidate) []string {
	var problems []string

	title := strings.TrimSpace(c.Title)
	switch {
	case title == "":
		problems = append(problems, "title is empty")
	case len(title) < minTitleLen:
		problems = append(problems, fmt.Sprintf("title shorter than %d characters", minTitleLen))
	case len(title) > maxTitleLen:
		problems = append(problems, fmt.Sprintf("title longer than %d characters", maxTitleLen))
	}

	summary := strings.TrimSpace(c.Summary)
	switch {
	case summary == "":
		problems = append(problems, "summary is empty")
	case len(summary) < minSummaryLen:
		problems = append(problems, fmt.Sprintf("summary shorter than %d characters", minSummaryLen))
	case len(summary) > maxSummaryLen:
		problems = append(problems, fmt.Sprintf("summary longer than %d characters", maxSummaryLen))
	}

	description := strings.TrimSpace(c.Description)
	switch {
	case description == "":
		problems = append(problems, "description is empty")
	case len(description) < minDescriptionLen:
		problems = append(problems, fmt.Sprintf("description shorter than %d characters", minDescriptionLen))
	}

	if strings.TrimSpace(c.Sector) == "" {
		problems = append(problems, "sector is empty")
	}

	return problems
}
