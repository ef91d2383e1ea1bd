package extract

// Extract applies every rule to text and returns the resulting Record.
// It has no side effects and never fails: malformed or empty text simply
// yields empty fields.
func Extract(text string) Record {
	var rec Record
	for _, r := range rules {
		*rec.field(r.Key) = r.Find(text)
	}
	return rec
}

// Extractor is the function form of Extract, for injection.
type Extractor func(text string) Record
