package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/resendlabs/resend-go"

	"github.com/kamikazebr/sentinel/pkg/models"
)

type fakeEmails struct {
	sent []*resend.SendEmailRequest
	err  error
}

func (f *fakeEmails) Send(params *resend.SendEmailRequest) (resend.SendEmailResponse, error) {
	f.sent = append(f.sent, params)
	return resend.SendEmailResponse{}, f.err
}

type fakePush struct {
	sent []*messaging.Message
}

func (f *fakePush) Send(ctx context.Context, message *messaging.Message) (string, error) {
	f.sent = append(f.sent, message)
	return "msg-1", nil
}

type failingNotifier struct{ err error }

func (n failingNotifier) NotifyUnlockRequest(ctx context.Context, req *models.UnlockRequest) error {
	return n.err
}

var testRequest = &models.UnlockRequest{
	ID:              "req-1",
	DeviceID:        "dev-a",
	DeviceName:      "<Laptop>",
	DeviceType:      models.DeviceLinux,
	RequestSourceIP: "192.0.2.10",
	Reason:          "Manual unlock",
}

func TestEmailNotifier_SendsEscapedBody(t *testing.T) {
	emails := &fakeEmails{}
	n := &EmailNotifier{emails: emails, fromEmail: "sentinel@example.com", to: []string{"ops@example.com"}}

	if err := n.NotifyUnlockRequest(context.Background(), testRequest); err != nil {
		t.Fatalf("NotifyUnlockRequest failed: %v", err)
	}
	if len(emails.sent) != 1 {
		t.Fatalf("Expected 1 email, got %d", len(emails.sent))
	}
	sent := emails.sent[0]
	if sent.To[0] != "ops@example.com" || !strings.Contains(sent.Subject, "<Laptop>") {
		t.Errorf("Unexpected email: %+v", sent)
	}
	if strings.Contains(sent.Html, "<Laptop>") || !strings.Contains(sent.Html, "&lt;Laptop&gt;") {
		t.Error("Expected device name to be HTML escaped")
	}
}

func TestNewEmailNotifier_RequiresConfig(t *testing.T) {
	if _, err := NewEmailNotifier("", "", []string{"ops@example.com"}); err == nil {
		t.Error("Expected error without API key")
	}
	if _, err := NewEmailNotifier("re_test", "", nil); err == nil {
		t.Error("Expected error without recipients")
	}
}

func TestPushNotifier_PublishesToTopic(t *testing.T) {
	push := &fakePush{}
	n := &PushNotifier{client: push, topic: "sentinel-ops"}

	if err := n.NotifyUnlockRequest(context.Background(), testRequest); err != nil {
		t.Fatalf("NotifyUnlockRequest failed: %v", err)
	}
	msg := push.sent[0]
	if msg.Topic != "sentinel-ops" || msg.Data["requestId"] != "req-1" {
		t.Errorf("Unexpected message: %+v", msg)
	}
}

func TestMultiNotifier_JoinsErrors(t *testing.T) {
	errA := errors.New("a down")
	emails := &fakeEmails{}
	m := MultiNotifier{
		failingNotifier{err: errA},
		&EmailNotifier{emails: emails, fromEmail: "x@example.com", to: []string{"ops@example.com"}},
	}

	err := m.NotifyUnlockRequest(context.Background(), testRequest)
	if !errors.Is(err, errA) {
		t.Errorf("Expected joined error to contain errA, got %v", err)
	}
	if len(emails.sent) != 1 {
		t.Error("Later notifiers must still run after a failure")
	}
}
