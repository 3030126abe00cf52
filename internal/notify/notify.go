package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/AngelCh415/campaign-health/internal/utils"
)

// Alert is what gets pushed when a campaign needs a human.
type Alert struct {
	CampaignID  string    `json:"campaign_id"`
	Campaign    string    `json:"campaign"`
	Action      string    `json:"action"`
	Reason      string    `json:"reason"`
	HealthScore int       `json:"health_score"`
	LifeStage   string    `json:"life_stage"`
	Issues      []string  `json:"issues"`
	Critical    bool      `json:"critical"`
	AsOf        string    `json:"as_of"`
	SentAt      time.Time `json:"sent_at"`
}

type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// Nop drops every alert.
type Nop struct{}

func (Nop) Notify(context.Context, Alert) error { return nil }

type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Webhook posts alerts as JSON, signed with X-Signature when a secret is set.
type Webhook struct {
	c       Doer
	url     string
	secret  string
	backoff utils.Backoff
	log     zerolog.Logger
}

func NewWebhook(c Doer, url, secret string, b utils.Backoff, log zerolog.Logger) *Webhook {
	return &Webhook{c: c, url: url, secret: secret, backoff: b, log: log}
}

func (w *Webhook) Notify(ctx context.Context, a Alert) error {
	if a.SentAt.IsZero() {
		a.SentAt = time.Now().UTC()
	}
	if a.Issues == nil {
		a.Issues = []string{}
	}
	body, err := json.Marshal(a)
	if err != nil {
		return err
	}
	err = w.backoff.Do(ctx, func(int) error { return w.post(ctx, body) })
	if err != nil {
		return fmt.Errorf("alert %s: %w", a.CampaignID, err)
	}
	w.log.Info().Str("campaign_id", a.CampaignID).Str("action", a.Action).Msg("alert sent")
	return nil
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return utils.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.secret != "" {
		req.Header.Set("X-Signature", utils.Sign(w.secret, body))
	}
	resp, err := w.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("webhook non-2xx: %d body=%s", resp.StatusCode, msg)
	if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return utils.Permanent(err)
	}
	return err
}
