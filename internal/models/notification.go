package models

// Channel is the messaging medium for substitute notifications.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSMS      Channel = "sms"
)

// Valid reports whether c is a supported channel.
func (c Channel) Valid() bool {
	return c == ChannelWhatsApp || c == ChannelSMS
}

// Notification is a rendered message ready for delivery.
type Notification struct {
	AssignmentID string  `json:"assignment_id"`
	TeacherID    string  `json:"teacher_id"`
	Phone        string  `json:"phone"`
	Channel      Channel `json:"channel"`
	Body         string  `json:"body"`
}
