package protocol

import (
	"fmt"
	"strings"

	"caseflow/session"
)

// Every persisted protocol version is prefixed with a non-editable banner
// listing the attendees present at the session. Editors strip the banner
// before showing raw text and the save path re-injects it.
const (
	headerBegin = "=== PRESENT ATTENDEES ==="
	headerEnd   = "=== END ATTENDEES ==="
)

// AttendeeHeader renders the banner for the given roster.
func AttendeeHeader(attendees []session.Attendee) string {
	var b strings.Builder
	b.WriteString(headerBegin)
	b.WriteString("\n")
	for _, a := range attendees {
		fmt.Fprintf(&b, "- %s (%s)\n", a.Name, a.Type)
	}
	b.WriteString(headerEnd)
	b.WriteString("\n")
	return b.String()
}

// HasHeader reports whether content already starts with an attendee banner.
func HasHeader(content string) bool {
	return strings.HasPrefix(content, headerBegin)
}

// InjectHeader prefixes the banner onto content. Idempotent: an existing
// banner is replaced with the current roster rather than stacked.
func InjectHeader(content string, attendees []session.Attendee) string {
	body := StripHeader(content)
	if body == "" {
		return AttendeeHeader(attendees)
	}
	return AttendeeHeader(attendees) + "\n" + body
}

// StripHeader returns the editable body without the banner. Content without
// a banner is returned unchanged.
func StripHeader(content string) string {
	if !HasHeader(content) {
		return content
	}
	idx := strings.Index(content, headerEnd)
	if idx < 0 {
		return content
	}
	rest := content[idx+len(headerEnd):]
	return strings.TrimLeft(rest, "\n")
}
