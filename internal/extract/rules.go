package extract

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/fichas-scanner/constants"
)

// FieldRule locates one labeled value in OCR text. Pattern must capture the
// value in group 1.
type FieldRule struct {
	Key     string
	Label   string
	Pattern *regexp.Regexp
}

// Find returns the trimmed group 1 of the first match, or "".
func (r FieldRule) Find(text string) string {
	m := r.Pattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// rules is static for the lifetime of the process. Each rule runs
// independently, so order only matters for display.
var rules = []FieldRule{
	rule(constants.FieldNome, `Nome[:\s]+([^\n]+)`),
	rule(constants.FieldCPF, `CPF[:\s]+(\d{3}\.?\d{3}\.?\d{3}-?\d{2})`),
	rule(constants.FieldDataNascimento, `Nascimento[:\s]+(\d{2}/\d{2}/\d{4})`),
	rule(constants.FieldTelefone, `Telefone[:\s]+(\(\d{2}\)?\s?\d{4,5}-?\d{4})`),
	rule(constants.FieldCEP, `CEP[:\s]+(\d{5}-?\d{3})`),
	rule(constants.FieldEndereco, `Endereço[:\s]+([^\n]+)`),
	rule(constants.FieldBairro, `Bairro[:\s]+([^\n]+)`),
	rule(constants.FieldCidade, `Cidade[:\s]+([^\n]+)`),
	rule(constants.FieldNumero, `Número[:\s]+(\d+)`),
	rule(constants.FieldEmail, `Email[:\s]+([^\s]+@[^\s]+)`),
}

// nbsp widens RE2's ASCII \s to also cover U+00A0, which OCR engines emit
// after colons.
var nbsp = strings.NewReplacer(
	`[:\s]`, `[:\s\x{00A0}]`,
	`[^\s]`, `[^\s\x{00A0}]`,
	`\s?`, `[\s\x{00A0}]?`,
)

// rule compiles a case-insensitive pattern. RE2's (?i) folds Unicode
// letters, so "ENDEREÇO" and "número" match too.
func rule(key, pattern string) FieldRule {
	return FieldRule{
		Key:     key,
		Label:   constants.FieldLabels[key],
		Pattern: regexp.MustCompile(`(?i)` + nbsp.Replace(pattern)),
	}
}

// Rules returns a copy of the rule table.
func Rules() []FieldRule {
	return append([]FieldRule(nil), rules...)
}
