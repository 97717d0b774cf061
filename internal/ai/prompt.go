package ai

import (
	"fmt"
	"strings"

	"draft-relay/internal/model"
)

var contextDescriptions = map[string]string{
	"collaboration": "responding to a research collaboration inquiry or ongoing collaborative project",
	"peer-review":   "responding to peer review comments or journal correspondence",
	"conference":    "responding to conference-related communication such as submissions and presentations",
	"grant":         "responding to grant-related matters such as applications, reports and funding agencies",
	"supervision":   "responding as a research supervisor to students or mentees",
	"department":    "responding to departmental or administrative academic matters",
	"general":       "responding to general academic and research correspondence",
}

func contextDescription(ctx string) string {
	if d, ok := contextDescriptions[ctx]; ok {
		return d
	}
	return contextDescriptions["general"]
}

func systemPrompt(prefs model.ReplyPreferences) string {
	return fmt.Sprintf(`You are an email assistant for a research professional, currently %s.

Write replies that:
- keep a formal yet collegial tone suitable for academic correspondence
- are concise and address every point raised in the original email
- respect academic conventions without excessive formality or flattery

You write as an experienced researcher who understands scholarly communication.`, contextDescription(prefs.Context))
}

func userPrompt(originalText string, prefs model.ReplyPreferences) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a %s reply to the following email.\n\n", prefs.Tone)
	fmt.Fprintf(&b, "Original Email:\n%s\n\n", originalText)
	b.WriteString("Requirements:\n")
	fmt.Fprintf(&b, "- Be %s in tone\n", prefs.Tone)
	b.WriteString("- Address all key points raised in the original email\n")
	fmt.Fprintf(&b, "- Sign off with: %q\n", prefs.SignOff)
	if prefs.Signature != "" {
		fmt.Fprintf(&b, "- Include signature: %q\n", prefs.Signature)
	}
	if prefs.Name != "" {
		fmt.Fprintf(&b, "- Sign as: %q\n", prefs.Name)
	}
	b.WriteString("- Format as a plain text email\n")
	b.WriteString("- Do not include the original email in your response\n\n")
	b.WriteString("Generate only the email reply body:")
	return b.String()
}
