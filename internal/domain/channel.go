package domain

// Channel identifies a delivery medium for subscriber communications.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSMS      Channel = "sms"
)

// ValidChannel reports whether c is a known delivery channel.
func ValidChannel(c Channel) bool {
	switch c {
	case ChannelEmail, ChannelWhatsApp, ChannelSMS:
		return true
	}
	return false
}

// ChannelSet is a set of opted-in channels, stored as a slice for JSON/DB
// friendliness. Order is not significant.
type ChannelSet []Channel

// Contains reports whether the set includes the given channel.
func (s ChannelSet) Contains(c Channel) bool {
	for _, ch := range s {
		if ch == c {
			return true
		}
	}
	return false
}
