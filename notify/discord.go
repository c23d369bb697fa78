package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

const (
	ColorRed    = 0xE74C3C
	ColorYellow = 0xF1C40F
)

// Webhook posts room messages to Discord incoming webhooks, one URL per
// room. Rooms without a configured URL are skipped.
type Webhook struct {
	urls       map[string]string
	httpClient *http.Client
}

func NewWebhook(urls map[string]string) *Webhook {
	copied := make(map[string]string, len(urls))
	for room, url := range urls {
		if url != "" {
			copied[room] = url
		}
	}
	return &Webhook{
		urls:       copied,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *Webhook) Enabled(roomID string) bool {
	_, ok := w.urls[roomID]
	return ok
}

type Embed struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Color       int    `json:"color,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

type webhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Deliver sends each page as its own message. Session and liquidation
// notices go out as colored embeds.
func (w *Webhook) Deliver(ctx context.Context, roomID string, msg Message) error {
	url, ok := w.urls[roomID]
	if !ok {
		return nil
	}

	for _, page := range msg.Pages {
		payload := webhookPayload{Content: page}
		switch msg.Kind {
		case KindLiquidation:
			payload = embedPayload("Liquidation", page, ColorRed)
		case KindSession:
			payload = embedPayload("Trade Sim", page, ColorYellow)
		}
		if err := w.send(ctx, url, payload); err != nil {
			return err
		}
	}
	return nil
}

func embedPayload(title, description string, color int) webhookPayload {
	return webhookPayload{Embeds: []Embed{{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}}}
}

func (w *Webhook) send(ctx context.Context, url string, payload webhookPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		logx.Infof("⚠️ discord: rate limited")
		return fmt.Errorf("discord rate limited")
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook: status=%d", resp.StatusCode)
	}

	return nil
}
