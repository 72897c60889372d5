package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
)

type emailsAPI interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendMailer sends digests through the Resend API.
type ResendMailer struct {
	emails emailsAPI
	from   string
	to     []string
}

func NewResendMailer(apiKey, from string, to ...string) (*ResendMailer, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("resend api key is required")
	}
	recipients := make([]string, 0, len(to))
	for _, addr := range to {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	if strings.TrimSpace(from) == "" || len(recipients) == 0 {
		return nil, errors.New("email sender and recipient are required")
	}

	client := resend.NewClient(apiKey)
	return &ResendMailer{emails: client.Emails, from: from, to: recipients}, nil
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) (string, error) {
	resp, err := m.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      m.to,
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return "", fmt.Errorf("resend: %w", err)
	}
	if resp == nil {
		return "", errors.New("resend: empty response")
	}
	return resp.Id, nil
}
