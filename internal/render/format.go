package render

import (
	"html"
	"strings"

	"github.com/luminapress/comms-engine/internal/domain"
)

// formatter escapes a substituted value for a specific channel. The template
// body itself is trusted (authored in the CMS); only variable values pass
// through a formatter.
type formatter func(string) string

func formatterFor(c domain.Channel) formatter {
	switch c {
	case domain.ChannelEmail:
		return formatHTML
	case domain.ChannelWhatsApp:
		return formatWhatsApp
	default:
		return formatPlain
	}
}

// formatHTML escapes HTML metacharacters so a subscriber-supplied value
// cannot inject markup into an email body.
func formatHTML(s string) string {
	return html.EscapeString(s)
}

// WhatsApp markdown-lite has no escape syntax, so formatting runes in
// substituted values are stripped to keep a value like "*important*" from
// rendering as bold.
var whatsAppMarkup = strings.NewReplacer("*", "", "_", "", "~", "", "```", "")

func formatWhatsApp(s string) string {
	return whatsAppMarkup.Replace(s)
}

// formatPlain normalizes line endings and strips carriage returns; SMS
// bodies carry no markup.
func formatPlain(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
