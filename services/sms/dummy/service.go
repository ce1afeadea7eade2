package dummysms

import (
	"sync"

	"github.com/jkimani/karo/core"
)

var (
	SentMessages = make([]core.SMSMessage, 0)
	mu           sync.Mutex
)

// service records messages instead of sending them. Test use only.
type service struct{}

var _ core.SMSService = (*service)(nil)

func NewService() core.SMSService {
	return &service{}
}

func (svc service) SendMessages(messages ...*core.SMSMessage) {
	mu.Lock()
	defer mu.Unlock()
	for _, msg := range messages {
		SentMessages = append(SentMessages, *msg)
	}
}

// Reset clears the recorded messages between tests.
func Reset() {
	mu.Lock()
	SentMessages = SentMessages[:0]
	mu.Unlock()
}
