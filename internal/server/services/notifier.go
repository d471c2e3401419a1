package services

import (
	"context"
	"errors"
	"fmt"
	"html"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/resendlabs/resend-go"
	"google.golang.org/api/option"

	"github.com/kamikazebr/sentinel/pkg/models"
)

// Notifier tells the operator a device is waiting for approval
type Notifier interface {
	NotifyUnlockRequest(ctx context.Context, req *models.UnlockRequest) error
}

type NopNotifier struct{}

func (NopNotifier) NotifyUnlockRequest(ctx context.Context, req *models.UnlockRequest) error {
	return nil
}

// MultiNotifier fans out to every backend and joins their errors
type MultiNotifier []Notifier

func (m MultiNotifier) NotifyUnlockRequest(ctx context.Context, req *models.UnlockRequest) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyUnlockRequest(ctx, req); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// emailSender is the slice of the resend client EmailNotifier uses
type emailSender interface {
	Send(params *resend.SendEmailRequest) (resend.SendEmailResponse, error)
}

type EmailNotifier struct {
	emails    emailSender
	fromEmail string
	to        []string
}

func NewEmailNotifier(apiKey, fromEmail string, to []string) (*EmailNotifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend API key not set")
	}
	if len(to) == 0 {
		return nil, fmt.Errorf("no notification recipients configured")
	}
	if fromEmail == "" {
		fromEmail = "sentinel@localhost"
	}

	client := resend.NewClient(apiKey)

	return &EmailNotifier{
		emails:    client.Emails,
		fromEmail: fromEmail,
		to:        to,
	}, nil
}

func (n *EmailNotifier) NotifyUnlockRequest(ctx context.Context, req *models.UnlockRequest) error {
	params := &resend.SendEmailRequest{
		From:    n.fromEmail,
		To:      n.to,
		Subject: fmt.Sprintf("Sentinel: unlock requested by %s", req.DeviceName),
		Html: fmt.Sprintf(`
			<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
				<h2 style="color: #333;">Unlock request pending</h2>
				<p><strong>%s</strong> (%s) is asking for network access.</p>
				<p>Source: <code>%s</code><br>Reason: %s</p>
				<p style="color: #666;">Request ID: %s</p>
				<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">
				<p style="color: #999; font-size: 12px;">Sentinel WireGuard access control</p>
			</div>
		`,
			html.EscapeString(req.DeviceName), req.DeviceType,
			html.EscapeString(req.RequestSourceIP), html.EscapeString(req.Reason), req.ID),
	}

	if _, err := n.emails.Send(params); err != nil {
		return fmt.Errorf("failed to send notification email: %w", err)
	}
	return nil
}

// pushSender is the slice of the FCM client PushNotifier uses
type pushSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushNotifier publishes unlock requests to an FCM topic
type PushNotifier struct {
	client pushSender
	topic  string
}

func NewPushNotifier(ctx context.Context, credentialsPath, topic string) (*PushNotifier, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("firebase credentials path not set")
	}
	if topic == "" {
		return nil, fmt.Errorf("FCM topic not set")
	}

	opt := option.WithCredentialsFile(credentialsPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Firebase Messaging client: %w", err)
	}

	return &PushNotifier{client: client, topic: topic}, nil
}

func (n *PushNotifier) NotifyUnlockRequest(ctx context.Context, req *models.UnlockRequest) error {
	msg := &messaging.Message{
		Topic: n.topic,
		Notification: &messaging.Notification{
			Title: "Unlock requested",
			Body:  fmt.Sprintf("%s asks for access: %s", req.DeviceName, req.Reason),
		},
		Data: map[string]string{
			"requestId": req.ID,
			"deviceId":  req.DeviceID,
			"sourceIp":  req.RequestSourceIP,
		},
	}

	if _, err := n.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}
	return nil
}
