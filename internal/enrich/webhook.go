package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"arbsim/internal/model"
)

// Webhook asks an external service for commentary. It posts the trade as JSON
// to {url}/analysis and {url}/lesson.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a webhook enricher. client may be nil.
func NewWebhook(url string, client *http.Client) *Webhook {
	if client == nil {
		client = http.DefaultClient
	}
	return &Webhook{url: strings.TrimRight(url, "/"), client: client}
}

type lessonResponse struct {
	Topic     string  `json:"topic"`
	Content   string  `json:"content"`
	Reasoning string  `json:"reasoning"`
	Retention float64 `json:"retention"`
}

// Analyze posts the trade to {url}/analysis. An empty summary is ErrNoContent.
func (w *Webhook) Analyze(ctx context.Context, trade model.TradeRecord) (*Analysis, error) {
	var out Analysis
	if err := w.post(ctx, "/analysis", trade, &out); err != nil {
		return nil, err
	}
	if out.Summary == "" {
		return nil, ErrNoContent
	}
	return &out, nil
}

// Lesson posts the trade to {url}/lesson. An empty content is ErrNoContent.
func (w *Webhook) Lesson(ctx context.Context, trade model.TradeRecord) (*model.Lesson, error) {
	var out lessonResponse
	if err := w.post(ctx, "/lesson", trade, &out); err != nil {
		return nil, err
	}
	if out.Content == "" {
		return nil, ErrNoContent
	}
	return &model.Lesson{
		Topic:     out.Topic,
		Content:   out.Content,
		Reasoning: out.Reasoning,
		Retention: out.Retention,
	}, nil
}

func (w *Webhook) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("post %s: unexpected status %d", path, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
