// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package notification

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/geotunnel/edge-agent/pkg/config"
	"github.com/geotunnel/edge-agent/pkg/model"
	"github.com/geotunnel/edge-agent/pkg/util/log"
)

// SMSClient sends warning texts through the configured provider.
// Providers: twilio (REST API), http (generic gateway), gsm (site modem,
// delegated to a local gateway daemon over HTTP).
type SMSClient struct {
	cfg    config.SMSConfig
	client *http.Client
}

// NewSMSClient builds an SMS client.
func NewSMSClient(cfg config.SMSConfig) *SMSClient {
	return &SMSClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// SendWarning texts the warning to each E.164 number, returning the count
// delivered and the last error.
func (c *SMSClient) SendWarning(w *model.WarningEvent, recipients []string) (int, error) {
	if !c.cfg.Enabled {
		return 0, errors.Wrap(ErrNotificationFailed, "sms disabled")
	}
	text := formatSMS(w)
	sent := 0
	var lastErr error
	for _, to := range recipients {
		if !strings.HasPrefix(to, "+") {
			log.Warnf("skipping non-E.164 sms recipient %q", to) //nolint:errcheck
			continue
		}
		var err error
		switch c.cfg.Provider {
		case "twilio":
			err = c.sendTwilio(to, text)
		case "http", "gsm":
			err = c.sendHTTP(to, text)
		default:
			err = errors.Errorf("unknown sms provider %q", c.cfg.Provider)
		}
		if err != nil {
			lastErr = err
			log.Errorf("sms to %s failed: %v", to, err) //nolint:errcheck
			continue
		}
		sent++
	}
	if sent == 0 && lastErr != nil {
		return 0, errors.Wrapf(ErrNotificationFailed, "sms: %v", lastErr)
	}
	return sent, nil
}

func (c *SMSClient) sendTwilio(to, text string) error {
	sid := c.cfg.Twilio["account_sid"]
	token := c.cfg.Twilio["auth_token"]
	from := c.cfg.Twilio["from_number"]
	if sid == "" || token == "" || from == "" {
		return errors.New("twilio credentials missing")
	}
	form := url.Values{"To": {to}, "From": {from}, "Body": {text}}
	req, err := http.NewRequest(http.MethodPost,
		fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", sid),
		strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "building twilio request")
	}
	req.SetBasicAuth(sid, token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "calling twilio")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.Errorf("twilio returned %s", resp.Status)
	}
	return nil
}

// sendHTTP posts to a generic gateway. The gsm provider uses the same
// path: the site modem is fronted by a tiny local HTTP daemon.
func (c *SMSClient) sendHTTP(to, text string) error {
	gateway := c.cfg.HTTP["url"]
	if c.cfg.Provider == "gsm" {
		gateway = c.cfg.GSM["gateway_url"]
	}
	if gateway == "" {
		return errors.New("sms gateway url missing")
	}
	form := url.Values{"to": {to}, "message": {text}}
	resp, err := c.client.PostForm(gateway, form)
	if err != nil {
		return errors.Wrap(err, "calling sms gateway")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.Errorf("sms gateway returned %s", resp.Status)
	}
	return nil
}

func formatSMS(w *model.WarningEvent) string {
	msg := fmt.Sprintf("[%s] Ring %d %s", w.Level, w.RingNumber, w.IndicatorName)
	if w.IndicatorValue != nil {
		msg += fmt.Sprintf(" = %.2f", *w.IndicatorValue)
	}
	if w.ThresholdValue != nil {
		msg += fmt.Sprintf(" (limit %.2f)", *w.ThresholdValue)
	}
	return msg
}
