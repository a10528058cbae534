// Package protocol implements the tactic label wire format carried in every
// generated message:
//
//	TACTICS: <label>[, <label>...]
//	---
//	message body
//
// The decoder is total and idempotent: it is called on every partial prefix
// of a streamed message and never errors. Malformed input degrades to an
// empty tactic set and a best-effort body.
package protocol

import (
	"regexp"
	"strings"
)

const (
	// HeaderPrefix starts the tactic header line.
	HeaderPrefix = "TACTICS:"
	// Separator terminates the header block. The body begins after the first
	// occurrence.
	Separator = "\n---\n"
)

// headerPattern matches a complete header line anchored at the start of the
// accumulated text. The trailing newline is required: a header without it has
// not fully arrived yet.
var headerPattern = regexp.MustCompile(`^TACTICS:[ \t]*([^\n]*)\n`)

// Message is the decoded view of accumulated generator output.
type Message struct {
	Tactics []string
	Body    string
}

// Decode decodes the accumulated text into tactic labels and display body.
// Any prefix of a well-formed message decodes to either an empty result or a
// correct partial result.
func Decode(raw string) Message {
	return Message{
		Tactics: DecodeTactics(raw),
		Body:    DecodeBody(raw),
	}
}

// DecodeTactics extracts the tactic labels from the header line. It returns
// nil when the header is absent or not yet fully received. Labels are
// returned verbatim; vocabulary filtering is the scorer's concern.
func DecodeTactics(raw string) []string {
	m := headerPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}

	var labels []string
	for _, part := range strings.Split(m[1], ",") {
		label := strings.TrimSpace(part)
		if label == "" {
			continue
		}
		labels = append(labels, label)
	}
	return labels
}

// DecodeBody extracts the human-readable body. While the separator has not
// arrived but the text visibly starts with the header prefix, it returns an
// empty string so the raw header never leaks to the user mid-stream. Text
// with neither separator nor header is treated as already being the body.
func DecodeBody(raw string) string {
	if idx := strings.Index(raw, Separator); idx >= 0 {
		return strings.TrimSpace(raw[idx+len(Separator):])
	}
	if strings.HasPrefix(strings.TrimLeft(raw, " \t\r\n"), HeaderPrefix) {
		return ""
	}
	return strings.TrimSpace(raw)
}

// Encode renders labels and body into the wire format. It is the inverse of
// Decode for well-formed input and is used by the scripted generator.
func Encode(labels []string, body string) string {
	var b strings.Builder
	b.WriteString(HeaderPrefix)
	b.WriteString(" ")
	b.WriteString(strings.Join(labels, ", "))
	b.WriteString(Separator)
	b.WriteString(body)
	return b.String()
}
