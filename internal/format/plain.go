// Package format renders fleetwatch events as plain console lines.
package format

import (
	"fmt"
	"strings"
	"time"

	"pkt.systems/fleetwatch/schema"
)

// PlainRenderer formats events as plain text lines.
type PlainRenderer struct {
	// Timestamps prefixes each line with the event's creation time.
	Timestamps bool
}

// NewPlainRenderer returns a default plain-text renderer.
func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{}
}

// FormatStreamEvent converts a stream event into user-facing lines.
func (p *PlainRenderer) FormatStreamEvent(event schema.StreamEvent) []string {
	if event.LinkDown() {
		return []string{"event stream lost; reconnecting"}
	}
	var b strings.Builder
	if p.Timestamps && !event.Event.CreatedAt.IsZero() {
		b.WriteString(event.Event.CreatedAt.Local().Format(time.RFC3339))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "[%s]", event.Stream)
	if marker := levelMarker(event.Event.Level); marker != "" {
		b.WriteByte(' ')
		b.WriteString(marker)
	}
	if scope := eventScope(event.Event); scope != "" {
		b.WriteByte(' ')
		b.WriteString(scope)
	}
	text := strings.TrimSpace(event.Event.Text)
	if text == "" {
		text = "(no message)"
	}
	lines := strings.Split(text, "\n")
	prefix := b.String()
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, prefix+" "+line)
	}
	return out
}

// FormatFeedback converts a feedback event into user-facing lines.
func (p *PlainRenderer) FormatFeedback(event schema.FeedbackEvent) []string {
	prefix := "info:"
	if event.Severity == schema.FeedbackError {
		prefix = "error:"
	}
	line := prefix + " " + event.Summary
	if event.Detail != "" {
		line += " (" + event.Detail + ")"
	}
	return []string{line}
}

// FormatTabEvent converts a tab lifecycle event into user-facing lines.
func (p *PlainRenderer) FormatTabEvent(event schema.TabEvent) []string {
	switch event.Type {
	case schema.TabEventOpened:
		return []string{fmt.Sprintf("tab opened: %s", tabLabel(event.Tab))}
	case schema.TabEventClosed:
		return []string{fmt.Sprintf("tab closed: %s", tabLabel(event.Tab))}
	case schema.TabEventActivated:
		return []string{fmt.Sprintf("tab active: %s", tabLabel(event.Tab))}
	default:
		return nil
	}
}

func tabLabel(tab schema.TabSnapshot) string {
	if tab.Title != "" {
		return tab.Title
	}
	return fmt.Sprintf("#%d", tab.Value)
}

func levelMarker(level schema.EventLevel) string {
	switch level {
	case schema.LevelWarning:
		return "WARN"
	case schema.LevelError:
		return "ERROR"
	default:
		return ""
	}
}

func eventScope(event *schema.DomainEvent) string {
	parts := make([]string, 0, 4)
	if event.Machine != nil {
		parts = append(parts, "machine="+event.Machine.Label())
	}
	if event.App != nil {
		parts = append(parts, "app="+event.App.Name)
	}
	if event.Daemon != nil {
		parts = append(parts, "daemon="+event.Daemon.Name)
	}
	if event.User != nil {
		parts = append(parts, "user="+event.User.Login)
	}
	return strings.Join(parts, " ")
}
