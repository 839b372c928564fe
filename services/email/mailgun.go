package emailsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

const mailgunSendTimeout = 10 * time.Second

type mailgunService struct {
	mg         *mailgun.MailgunImpl
	from       string
	subjPrefix string
	logger     core.Logger
}

var _ core.EmailService = (*mailgunService)(nil)

func NewMailgunService(conf *core.Config, logger core.Logger) core.EmailService {
	return &mailgunService{
		mg:         mailgun.NewMailgun(conf.Email.MailgunDomain, conf.Email.MailgunAPIKey),
		from:       conf.DefaultFromEmail.String(),
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}
}

func (svc mailgunService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := svc.SendMessage(msg); err != nil {
				svc.logger.Error(fmt.Sprintf("sending email: %v", err), err)
			}
		}()
	}
}

func (svc mailgunService) SendMessage(msg *core.EmailMessage) error {
	if !msg.HasRecipients() || !msg.HasContent() {
		return nil
	}

	m := svc.mg.NewMessage(svc.from, svc.subjPrefix+msg.Subject, msg.TextContent)
	for _, to := range msg.To {
		if err := m.AddRecipient(to.String()); err != nil {
			return errors.Wrap(err, "adding recipient")
		}
	}
	for _, cc := range msg.Cc {
		m.AddCC(cc.String())
	}
	for _, bcc := range msg.Bcc {
		m.AddBCC(bcc.String())
	}
	if msg.HTMLContent != "" {
		m.SetHtml(msg.HTMLContent)
	}

	ctx, cancel := context.WithTimeout(context.Background(), mailgunSendTimeout)
	defer cancel()

	if _, _, err := svc.mg.Send(ctx, m); err != nil {
		return errors.Wrap(err, "sending email")
	}
	return nil
}
