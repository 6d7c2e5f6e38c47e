// Package mailfmt renders a CloudMail message as a chat reply.
package mailfmt

import (
	"html"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/teemow/cloudmailbot/internal/cloudmail"
)

const (
	// MaxBodyRunes is the longest body shown before truncation.
	MaxBodyRunes = 1000

	TruncatedMarker = "\n...(内容过长已截断)"
	UnknownSender   = "未知发件人"
	UnknownTime     = "未知时间"
	NoContent       = "无内容"
	NoSubject       = "无标题"

	displayLayout = "2006-01-02 15:04:05"
	separator     = "══════════════"
)

// Shanghai is UTC+8 without DST.
var Shanghai = time.FixedZone("UTC+8", 8*60*60)

var (
	brTag      = regexp.MustCompile(`(?i)<br\s*/?>`)
	pClose     = regexp.MustCompile(`(?i)</p\s*>`)
	styleBlock = regexp.MustCompile(`(?is)<style[^>]*>.*?</style\s*>`)
	blankRuns  = regexp.MustCompile(`\n(?:[ \t\r]*\n)+`)

	strict = bluemonday.StrictPolicy()
)

// Sender formats the sender as "name <addr>", or whichever part exists.
func Sender(name, addr string) string {
	switch {
	case name != "" && addr != "":
		return name + " <" + addr + ">"
	case name != "":
		return name
	case addr != "":
		return addr
	default:
		return UnknownSender
	}
}

// isoLayouts are tried in order for timestamps containing a 'T'.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

// DisplayTime converts a UTC timestamp to "YYYY-MM-DD HH:MM:SS" in UTC+8.
// Timestamps without a zone are taken as UTC. Unparsable input is returned
// unchanged.
func DisplayTime(raw string) string {
	if raw == "" {
		return UnknownTime
	}

	t, err := parseTimestamp(raw)
	if err != nil {
		slog.Warn("unparsable mail timestamp", slog.String("value", raw), slog.String("error", err.Error()))
		return raw
	}
	return t.In(Shanghai).Format(displayLayout)
}

func parseTimestamp(raw string) (time.Time, error) {
	if !strings.Contains(raw, "T") {
		return time.ParseInLocation(displayLayout, raw, time.UTC)
	}
	var firstErr error
	for _, layout := range isoLayouts {
		t, err := time.ParseInLocation(layout, raw, time.UTC)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// CleanHTML reduces an HTML body to plain text. Line breaks and paragraph
// ends become newlines, style blocks are dropped, the remaining markup is
// stripped and blank-line runs collapse to a single newline.
func CleanHTML(raw string) string {
	if raw == "" {
		return ""
	}
	text := brTag.ReplaceAllString(raw, "\n")
	text = pClose.ReplaceAllString(text, "\n")
	text = styleBlock.ReplaceAllString(text, "")
	text = strict.Sanitize(text)
	text = html.UnescapeString(text)
	text = blankRuns.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

// Body picks the text part, then the cleaned HTML part, then the intro.
func Body(text, htmlBody, intro string) string {
	if text != "" {
		return text
	}
	if htmlBody != "" {
		if cleaned := CleanHTML(htmlBody); cleaned != "" {
			return cleaned
		}
	}
	if intro != "" {
		return intro
	}
	return NoContent
}

// Truncate cuts s to MaxBodyRunes characters and appends TruncatedMarker.
func Truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxBodyRunes {
		return s
	}
	return string(runes[:MaxBodyRunes]) + TruncatedMarker
}

// Summary is the rendered form of one mail.
type Summary struct {
	Mailbox string
	Sender  string
	Time    string
	Subject string
	Body    string
}

// Summarize builds the Summary of m received in mailbox.
func Summarize(mailbox string, m *cloudmail.Mail) Summary {
	subject := m.Subject
	if subject == "" {
		subject = NoSubject
	}
	return Summary{
		Mailbox: mailbox,
		Sender:  Sender(m.Name, m.SendEmail),
		Time:    DisplayTime(m.Timestamp()),
		Subject: subject,
		Body:    Truncate(Body(m.Text, m.HTML, m.Intro)),
	}
}

func (s Summary) String() string {
	return strings.Join([]string{
		"📧 最新邮件 (" + s.Mailbox + ")",
		separator,
		"发件人: " + s.Sender,
		"时  间: " + s.Time,
		"标  题: " + s.Subject,
		separator,
		s.Body,
	}, "\n")
}
