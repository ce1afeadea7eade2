package dummymail

import (
	"log"
	"sync"

	"github.com/jkimani/karo/core"
)

var (
	SentMessages = make([]core.EmailMessage, 0)
	mu           sync.Mutex
)

// service records messages instead of sending them. Test use only.
type service struct{}

var _ core.EmailService = (*service)(nil)

func NewService() core.EmailService {
	return &service{}
}

func (svc service) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if err := msg.Render(); err != nil {
			log.Fatal(err)
		}
		if msg.HasRecipients() && (msg.HasContent() || msg.HasAttachments()) {
			mu.Lock()
			SentMessages = append(SentMessages, *msg)
			mu.Unlock()
		}
	}
}

// Reset clears the recorded messages between tests.
func Reset() {
	mu.Lock()
	SentMessages = SentMessages[:0]
	mu.Unlock()
}
