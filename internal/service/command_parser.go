package service

import (
	"regexp"
	"strings"

	"draft-relay/internal/model"
)

// verb WS id [WS text]; (?s) lets edit text span lines.
var commandPattern = regexp.MustCompile(`(?is)^\s*(approve|reject|edit)\s+([a-z0-9-]+)(?:\s+(.*?))?\s*$`)

// ParseCommand interprets free text from the notification channel. It
// returns the command, the lowercased draft reference and whether the
// text was a well-formed command.
func ParseCommand(text string) (model.Command, string, bool) {
	m := commandPattern.FindStringSubmatch(text)
	if m == nil {
		return model.Command{}, "", false
	}
	verb := strings.ToLower(m[1])
	ref := strings.ToLower(m[2])
	rest := strings.TrimSpace(m[3])

	switch verb {
	case "approve":
		if rest != "" {
			return model.Command{}, "", false
		}
		return model.Approve(), ref, true
	case "reject":
		if rest != "" {
			return model.Command{}, "", false
		}
		return model.Reject(), ref, true
	default:
		if rest == "" {
			return model.Command{}, "", false
		}
		return model.Edit(rest), ref, true
	}
}
