package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gcaaa31928/daily-stock-analysis/internal/httpclient"
)

// webhookBudget is a generous 20KB: generic webhook endpoints are
// usually internal and not rate-limited by character count, so chunking
// only has to keep individual requests reasonable.
const webhookBudget = 20 * 1024

// Webhook posts a JSON body to any generic HTTP endpoint (enterprise
// chat bots, Slack-compatible incoming webhooks, self-hosted sinks).
// buildPayload lets callers shape the payload for a specific vendor
// (e.g. Slack wants "text", Feishu wants a "msg_type" envelope).
type Webhook struct {
	URL          string
	ChannelName  string
	budgetBytes  int
	buildPayload func(chunk string, index, total int) map[string]any
	client       *http.Client
}

// NewWebhook builds a generic webhook channel that POSTs {"content": chunk}.
func NewWebhook(name, webhookURL string) *Webhook {
	return &Webhook{
		URL:         webhookURL,
		ChannelName: name,
		budgetBytes: webhookBudget,
		buildPayload: func(chunk string, index, total int) map[string]any {
			return map[string]any{"content": chunk, "chunk": index, "total": total}
		},
		client: httpclient.New(10 * time.Second),
	}
}

// NewEnterpriseChatWebhook builds a webhook channel shaped for
// enterprise-chat-style bots (Feishu/WeChat Work envelope: a "msg_type"
// discriminator plus a nested content object), honoring a per-deployment
// byte-budget override and message-type switch from config.
func NewEnterpriseChatWebhook(name, webhookURL string, maxBytes int, msgType string) *Webhook {
	if maxBytes <= 0 {
		maxBytes = webhookBudget
	}
	if msgType == "" {
		msgType = "text"
	}
	return &Webhook{
		URL:         webhookURL,
		ChannelName: name,
		budgetBytes: maxBytes,
		buildPayload: func(chunk string, index, total int) map[string]any {
			return map[string]any{
				"msg_type": msgType,
				"content":  map[string]any{"text": chunk},
			}
		},
		client: httpclient.New(10 * time.Second),
	}
}

func (w *Webhook) Name() string { return w.ChannelName }
func (w *Webhook) Budget() int  { return w.budgetBytes }

func (w *Webhook) Send(ctx context.Context, chunk string, index, total int) error {
	body, _ := json.Marshal(w.buildPayload(chunk, index, total))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSpace(w.URL), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s http %d: %s", w.ChannelName, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
