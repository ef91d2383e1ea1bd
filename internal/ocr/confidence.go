package ocr

import (
	"regexp"
)

// formLabels are the printed labels of the registration form.
var formLabels = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bnome\b`),
	regexp.MustCompile(`(?i)\bcpf\b`),
	regexp.MustCompile(`(?i)nascimento`),
	regexp.MustCompile(`(?i)telefone`),
	regexp.MustCompile(`(?i)\bcep\b`),
	regexp.MustCompile(`(?i)endere[cç]o`),
	regexp.MustCompile(`(?i)bairro`),
	regexp.MustCompile(`(?i)cidade`),
	regexp.MustCompile(`(?i)n[uú]mero`),
	regexp.MustCompile(`(?i)e-?mail`),
}

// HeuristicConfidence scores recognized text by how many form labels it
// contains: 0.1 base, 0.08 per label, 0.1 more for enough content.
func HeuristicConfidence(txt string) float32 {
	if txt == "" {
		return 0
	}
	score := float32(0.1) // base
	for _, re := range formLabels {
		if re.MatchString(txt) {
			score += 0.08
		}
	}
	if len(txt) > 120 {
		score += 0.1
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}
