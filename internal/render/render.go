// Package render formats extracted mail fields into chat messages.
//
// Two markup dialects are supported: Telegram MarkdownV2 and
// Telegram-flavored HTML. Escaping is applied to the dynamic fields
// only, never to the surrounding template text, so hostile mail
// content cannot inject markup into the rendered message.
package render

import (
	"fmt"
	"slices"
	"strings"
)

// Dialect selects the markup scheme for rendered messages.
type Dialect int

const (
	// DialectMarkdownV2 is Telegram MarkdownV2 markup.
	DialectMarkdownV2 Dialect = iota
	// DialectHTML is Telegram-flavored HTML markup.
	DialectHTML
)

// String returns the dialect's parse_mode wire value.
func (d Dialect) String() string {
	switch d {
	case DialectHTML:
		return "HTML"
	default:
		return "MarkdownV2"
	}
}

// ParseDialect maps a configured parse mode to a Dialect.
// Anything other than HTML falls back to MarkdownV2.
func ParseDialect(parseMode string) Dialect {
	if parseMode == "HTML" {
		return DialectHTML
	}
	return DialectMarkdownV2
}

// Fields holds the dynamic message content extracted from one email.
// Absent fields stay empty and render as empty strings.
type Fields struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Message is a rendered chat message plus the dialect that produced it.
// It is immutable once built and consumed exactly once by a notifier.
type Message struct {
	Text    string
	Dialect Dialect
}

// markdownEscapes is the set of MarkdownV2-significant characters that
// must be backslash-escaped in dynamic text.
const markdownEscapes = "()[]{}<>`#+-=|.!*_\\"

// htmlEscaper substitutes entities for the five HTML-significant characters.
var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// Render produces a chat message from the extracted fields.
func Render(d Dialect, f Fields) Message {
	body := trimBody(f.Body)

	switch d {
	case DialectHTML:
		text := fmt.Sprintf("📨 <b>%s</b>\nFrom: <i>%s</i>\nTo: <i>%s</i>\n<blockquote expandable>%s</blockquote>",
			escapeHTML(f.Subject),
			escapeHTML(f.From),
			escapeHTML(f.To),
			escapeHTML(body))
		return Message{Text: text, Dialect: DialectHTML}
	default:
		text := fmt.Sprintf("📨 *%s*\nFrom: %s\nTo: %s\n%s",
			escapeMarkdownV2(f.Subject),
			escapeMarkdownV2(f.From),
			escapeMarkdownV2(f.To),
			expandableQuote(body))
		return Message{Text: text, Dialect: DialectMarkdownV2}
	}
}

// trimBody strips surrounding whitespace and the quote marker a
// nested-forwarded email may carry at the start of its body.
func trimBody(body string) string {
	body = strings.TrimSpace(body)
	return strings.TrimPrefix(body, "> ")
}

// escapeMarkdownV2 backslash-escapes every MarkdownV2-significant character.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(markdownEscapes, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// escapeHTML substitutes entities for &, <, >, " and '.
func escapeHTML(text string) string {
	return htmlEscaper.Replace(text)
}

// expandableQuote wraps body text in Telegram's expandable quote block:
// every line is quoted, the first line opens the block with **, a bare
// quote line after the third forces the collapsed presentation, and ||
// closes the block on the final line.
func expandableQuote(text string) string {
	if text == "" {
		return ""
	}

	var lines []string
	for i, line := range strings.Split(text, "\n") {
		escaped := escapeMarkdownV2(line)
		if i == 0 {
			lines = append(lines, "**> "+escaped)
		} else {
			lines = append(lines, "> "+escaped)
		}
	}

	if len(lines) > 3 {
		lines = slices.Insert(lines, 3, "> ")
	}

	lines[len(lines)-1] += "||"

	return strings.Join(lines, "\n")
}
