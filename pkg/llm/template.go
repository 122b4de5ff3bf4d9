package llm

import "strings"

const (
	turnStart = "<|im_start|>"
	turnEnd   = "<|im_end|>"
)

// FormatTurn renders one closed turn in the role-tagged chat template.
func FormatTurn(role Role, content string) string {
	return turnStart + role.String() + "\n" + content + turnEnd + "\n"
}

// OpenTurn starts a turn the model is expected to complete.
func OpenTurn(role Role) string {
	return turnStart + role.String() + "\n"
}

// RenderChat renders a turn history followed by an open assistant turn.
func RenderChat(turns []Message) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(FormatTurn(t.Role, t.Content))
	}
	b.WriteString(OpenTurn(RoleAssistant))
	return b.String()
}

// RenderHistory renders closed turns only.
func RenderHistory(turns []Message) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(FormatTurn(t.Role, t.Content))
	}
	return b.String()
}

// RenderTranscript renders messages as "Label: content" lines.
func RenderTranscript(msgs []Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.Role.Label())
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// AssistantCue ends a transcript so the model answers as the assistant.
func AssistantCue() string {
	return RoleAssistant.Label() + ": "
}
