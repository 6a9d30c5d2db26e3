// Package channels provides the concrete NotificationDispatcher sinks:
// Telegram, Discord, Pushover, email, generic/enterprise webhooks, and
// the session-reply channel.
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
	"github.com/gcaaa31928/daily-stock-analysis/internal/notify"
)

// telegramBudget is conservative against Telegram's actual 4096-char
// message cap, expressed in bytes since most reports are CJK-heavy.
const telegramBudget = 3800

const telegramAPIBase = "https://api.telegram.org"

// Telegram delivers chunks via the Bot API's sendMessage call, using
// Telegram's markdown subset and retrying as plain text on a parse
// error.
type Telegram struct {
	Token   string
	ChatID  string
	apiBase string
	client  *http.Client
}

func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{Token: token, ChatID: chatID, apiBase: telegramAPIBase, client: httpclient.New(8 * time.Second)}
}

func (t *Telegram) Name() string { return "telegram" }
func (t *Telegram) Budget() int  { return telegramBudget }

func (t *Telegram) Send(ctx context.Context, chunk string, index, total int) error {
	if err := t.post(ctx, notify.ToTelegramMarkdown(chunk), "Markdown"); err != nil {
		return t.post(ctx, notify.ToPlainText(chunk), "")
	}
	return nil
}

func (t *Telegram) post(ctx context.Context, text, parseMode string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, strings.TrimSpace(t.Token))
	payload := map[string]any{
		"chat_id":                  strings.TrimSpace(t.ChatID),
		"text":                     text,
		"disable_web_page_preview": true,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
