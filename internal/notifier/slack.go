package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Slack struct {
	Webhook string
	Blocks  bool
	HTTP    *http.Client
}

func NewSlack(webhook string, blocks bool) *Slack {
	return &Slack{
		Webhook: webhook,
		Blocks:  blocks,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, msg Message) error {
	if s.Webhook == "" {
		return fmt.Errorf("slack webhook not configured")
	}
	b, err := json.Marshal(s.payload(msg))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Webhook, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := s.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	resp, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	if res.StatusCode >= 300 {
		return fmt.Errorf("slack status %d: %s", res.StatusCode, string(resp))
	}
	return nil
}

func (s *Slack) payload(msg Message) map[string]any {
	if !s.Blocks {
		return map[string]any{"text": msg.Text}
	}
	ev := msg.Event
	mrkdwn := func(text string) map[string]any { return map[string]any{"type": "mrkdwn", "text": text} }
	return map[string]any{
		"text": msg.Text,
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{"type": "plain_text", "text": msg.Title, "emoji": true},
			},
			map[string]any{"type": "section", "text": mrkdwn("*" + msg.Text + "*")},
			map[string]any{
				"type": "section",
				"fields": []any{
					mrkdwn("*Host:*\n" + ev.Host),
					mrkdwn("*Time (UTC):*\n" + ev.At.UTC().Format(time.RFC3339)),
					mrkdwn("*Target Mode:*\n" + string(ev.To)),
					mrkdwn(fmt.Sprintf("*Load / Threshold:*\n%.2f / %.2f", ev.Load, ev.Threshold)),
				},
			},
			map[string]any{
				"type":     "context",
				"elements": []any{mrkdwn("Automated by cf-guard")},
			},
		},
	}
}
