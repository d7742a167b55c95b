// Package redact scrubs personally identifiable information from text
// before it is placed into a generation prompt.
package redact

import "regexp"

// rules are applied in order. SSN and card patterns run before the phone
// patterns so a bare 9 or 16 digit run is not half-consumed as a phone number.
var rules = []struct {
	label string
	re    *regexp.Regexp
}{
	{"[EMAIL]", regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)},
	{"[SSN]", regexp.MustCompile(`\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`)},
	{"[CARD]", regexp.MustCompile(`\b(?:4[0-9]{12}(?:[0-9]{3})?|5[1-5][0-9]{14}|3[47][0-9]{13}|6(?:011|5[0-9]{2})[0-9]{12})\b`)},
	{"[PHONE]", regexp.MustCompile(`(\+?1[-.\s]?)?\(?\b[0-9]{3}\)?[-.\s]?[0-9]{3}[-.][0-9]{4}\b`)},
	{"[IP]", regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`)},
}

// Scrubber replaces PII matches with bracketed type labels. It implements
// the provider.Redactor interface.
type Scrubber struct{}

func New() *Scrubber {
	return &Scrubber{}
}

func (s *Scrubber) Redact(text string) string {
	for _, r := range rules {
		text = r.re.ReplaceAllString(text, r.label)
	}
	return text
}
