package smssvc

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jkimani/karo/core"
)

// gatewayService posts messages to an Africa's Talking-compatible bulk SMS
// HTTP gateway.
type gatewayService struct {
	baseURL  string
	apiKey   string
	username string
	senderID string
	client   *http.Client
	logger   core.Logger
}

var _ core.SMSService = (*gatewayService)(nil)

func NewGatewayService(baseURL, username, apiKey string, logger core.Logger) core.SMSService {
	return &gatewayService{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		username: username,
		senderID: senderID(),
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

func (svc *gatewayService) SendMessages(messages ...*core.SMSMessage) {
	for _, msg := range messages {
		msg := msg
		go svc.send(msg)
	}
}

func (svc *gatewayService) send(msg *core.SMSMessage) {
	form := url.Values{}
	form.Set("username", svc.username)
	form.Set("to", msg.To)
	form.Set("from", svc.senderID)
	form.Set("message", msg.Body)

	req, err := http.NewRequest(http.MethodPost, svc.baseURL+"/version1/messaging", strings.NewReader(form.Encode()))
	if err != nil {
		svc.logger.Error(fmt.Sprintf("preparing SMS request: %v", err), err)
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apiKey", svc.apiKey)

	resp, err := svc.client.Do(req)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("sending SMS to %s: %v", msg.To, err), err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		svc.logger.Error(fmt.Sprintf("sending SMS to %s: gateway status %d", msg.To, resp.StatusCode))
	}
}
