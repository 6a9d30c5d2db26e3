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

// discordEmbedLimit is Discord's hard cap on an embed's description
// field.
const discordEmbedLimit = 4096

// Discord delivers chunks as webhook embeds. Its own Budget is the
// embed limit, so the shared chunker already keeps every piece under
// 4096 characters before Send ever runs.
type Discord struct {
	WebhookURL string
	client     *http.Client
}

func NewDiscord(webhookURL string) *Discord {
	return &Discord{WebhookURL: webhookURL, client: httpclient.New(8 * time.Second)}
}

func (d *Discord) Name() string { return "discord" }
func (d *Discord) Budget() int  { return discordEmbedLimit }

func (d *Discord) Send(ctx context.Context, chunk string, index, total int) error {
	title := "Stock Analysis Report"
	if total > 1 {
		title = fmt.Sprintf("%s (%d/%d)", title, index, total)
	}
	payload := map[string]any{
		"embeds": []map[string]any{
			{
				"title":       title,
				"description": chunk,
				"color":       0x2563eb,
			},
		},
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSpace(d.WebhookURL), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
