package smssvc

import (
	"log"

	"github.com/jkimani/karo/core"
)

type consoleService struct {
	senderID string
}

var _ core.SMSService = (*consoleService)(nil)

// NewConsoleService returns an SMSService that prints messages to stdout.
// Used in DEV mode.
func NewConsoleService() core.SMSService {
	return &consoleService{senderID: senderID()}
}

func (svc consoleService) SendMessages(messages ...*core.SMSMessage) {
	for _, msg := range messages {
		log.Printf("SMS from %s to %s: %s", svc.senderID, msg.To, msg.Body)
	}
}

func senderID() string {
	if id := core.Conf.SMSSenderID; id != "" {
		return id
	}
	return core.Conf.AppName
}
