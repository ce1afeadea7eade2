package core

// SMSMessage is a single text message addressed to one phone number.
type SMSMessage struct {
	To   string // MSISDN in international format
	Body string
}

// SMSService is any service that can send text messages.
type SMSService interface {
	// SendMessages sends messages concurrently
	SendMessages(messages ...*SMSMessage)
}
