package protocol

import "strings"

// Finding is an advisory note produced by ValidateContent. Findings never
// block a save; callers surface them to the author as warnings.
type Finding struct {
	Keyword string `json:"keyword"`
	Message string `json:"message"`
}

var lintRules = []struct {
	keyword string
	message string
}{
	{"decides", "operative 'decides' wording belongs in a decision"},
	{"ruling", "ruling language belongs in a decision"},
	{"orders that", "operative order language belongs in a decision"},
	{"final decision", "final decision wording belongs in a decision"},
	{"hereby", "operative 'hereby' phrasing belongs in a decision"},
}

// ValidateContent scans the protocol body for decision-style wording. A
// protocol records the proceeding; rulings live in decision records, which
// are created through their own path. Purely advisory: the scan hints at
// leakage, it never blocks a save.
func ValidateContent(content string) []Finding {
	lowered := strings.ToLower(content)
	var findings []Finding
	for _, r := range lintRules {
		if strings.Contains(lowered, r.keyword) {
			findings = append(findings, Finding{Keyword: r.keyword, Message: r.message})
		}
	}
	return findings
}
