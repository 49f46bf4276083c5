package logger

import "strings"

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactPhone masks an E.164 phone number, keeping the country prefix and
// the last two digits: "+15551234567" → "+1*******67".
func RedactPhone(phone string) string {
	if len(phone) < 6 {
		return "***"
	}
	head := phone[:2]
	tail := phone[len(phone)-2:]
	return head + strings.Repeat("*", len(phone)-4) + tail
}
