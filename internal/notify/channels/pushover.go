package channels

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gcaaa31928/daily-stock-analysis/internal/httpclient"
	"github.com/gcaaa31928/daily-stock-analysis/internal/notify"
)

// pushoverLimit is Pushover's message character cap.
const pushoverLimit = 1024

// Pushover delivers plain-text-only chunks through the Pushover API.
type Pushover struct {
	Token  string
	User   string
	client *http.Client
}

func NewPushover(token, user string) *Pushover {
	return &Pushover{Token: token, User: user, client: httpclient.New(8 * time.Second)}
}

func (p *Pushover) Name() string { return "pushover" }
func (p *Pushover) Budget() int  { return pushoverLimit }

func (p *Pushover) Send(ctx context.Context, chunk string, index, total int) error {
	form := url.Values{
		"token":   {p.Token},
		"user":    {p.User},
		"message": {notify.ToPlainText(chunk)},
	}
	if total > 1 {
		form.Set("title", fmt.Sprintf("Stock Analysis (%d/%d)", index, total))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.pushover.net/1/messages.json", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("pushover http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
