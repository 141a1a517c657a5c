// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package notification

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/wneessen/go-mail"

	"github.com/geotunnel/edge-agent/pkg/config"
	"github.com/geotunnel/edge-agent/pkg/model"
)

// EmailNotifier sends warning mails over SMTP.
type EmailNotifier struct {
	cfg config.EmailConfig
}

// NewEmailNotifier builds a notifier; delivery is attempted lazily so a
// dead relay does not block startup.
func NewEmailNotifier(cfg config.EmailConfig) *EmailNotifier {
	return &EmailNotifier{cfg: cfg}
}

// SendWarning mails the warning to the recipients.
func (n *EmailNotifier) SendWarning(w *model.WarningEvent, recipients []string) error {
	if !n.cfg.Enabled {
		return errors.Wrap(ErrNotificationFailed, "email disabled")
	}
	if len(recipients) == 0 {
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(n.cfg.FromName, n.cfg.FromAddress); err != nil {
		return errors.Wrap(err, "setting mail sender")
	}
	if err := msg.To(recipients...); err != nil {
		return errors.Wrap(err, "setting mail recipients")
	}
	msg.Subject(fmt.Sprintf("[%s] Ring %d: %s", w.Level, w.RingNumber, w.IndicatorName))
	msg.SetBodyString(mail.TypeTextPlain, formatWarningBody(w))

	opts := []mail.Option{
		mail.WithPort(n.cfg.SMTPPort),
		mail.WithTimeout(time.Duration(n.cfg.TimeoutSec) * time.Second),
	}
	if n.cfg.SMTPUser != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.SMTPUser),
			mail.WithPassword(n.cfg.SMTPPassword))
	}
	if n.cfg.UseTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(n.cfg.SMTPHost, opts...)
	if err != nil {
		return errors.Wrap(err, "building smtp client")
	}
	if err := client.DialAndSend(msg); err != nil {
		return errors.Wrapf(ErrNotificationFailed, "sending mail: %v", err)
	}
	return nil
}

func formatWarningBody(w *model.WarningEvent) string {
	body := fmt.Sprintf(
		"Warning %s\n\nRing:      %d\nIndicator: %s\nLevel:     %s\nType:      %s\nTime:      %s\n\n%s\n",
		w.WarningID, w.RingNumber, w.IndicatorName, w.Level, w.WarningType,
		w.CreatedAt.Format(time.RFC3339), w.Message)
	if w.IndicatorValue != nil {
		body += fmt.Sprintf("\nMeasured value: %.4f", *w.IndicatorValue)
	}
	if w.PredictedValue != nil {
		body += fmt.Sprintf("\nPredicted value: %.4f", *w.PredictedValue)
	}
	if w.ThresholdValue != nil {
		body += fmt.Sprintf("\nThreshold (%s): %.4f", w.ThresholdType, *w.ThresholdValue)
	}
	return body
}
