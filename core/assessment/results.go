package assessment

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const resultPrefix = "esito"

// ClampGrade keeps g within [0, 10] rounded to one decimal place.
func ClampGrade(g float64) float64 {
	if math.IsNaN(g) {
		return 0
	}
	g = math.Max(0, math.Min(10, g))
	return math.Round(g*10) / 10
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ResultLine renders the line recording a grade in an assessment's topics,
// eg. "Esito Matematica: 7.5/10".
func ResultLine(subject string, score, max float64) string {
	label := "Esito verifica"
	if subject = strings.TrimSpace(subject); subject != "" {
		label = "Esito " + subject
	}
	return fmt.Sprintf("%s: %s/%s", label, formatScore(score), formatScore(max))
}

func isResultLine(line string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), resultPrefix)
}

// MergeResultLine writes `result` into topics: the first result line is replaced, later ones
// and blank lines are dropped. Without any result line, `result` is appended.
func MergeResultLine(topics, result string) string {
	lines := strings.Split(strings.ReplaceAll(topics, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines)+1)
	replaced := false

	for _, line := range lines {
		switch {
		case strings.TrimSpace(line) == "":
			continue
		case isResultLine(line):
			if !replaced {
				out = append(out, result)
				replaced = true
			}
		default:
			out = append(out, line)
		}
	}
	if !replaced {
		out = append(out, result)
	}
	return strings.Join(out, "\n")
}

// resultLineOf returns the first result line found in topics.
func resultLineOf(topics string) (string, bool) {
	for _, line := range strings.Split(topics, "\n") {
		if isResultLine(line) {
			return strings.TrimSpace(line), true
		}
	}
	return "", false
}
