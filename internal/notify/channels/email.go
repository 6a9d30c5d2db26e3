package channels

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/gcaaa31928/daily-stock-analysis/internal/notify"
)

// emailBudget is generous: most SMTP relays accept several MB, but a
// single report rarely needs more than one chunk at this size.
const emailBudget = 200 * 1024

// smtpProviderTable maps a sender's mail domain to its SMTP relay, so a
// deployment only needs a from-address and password; host and port come
// from this table unless explicitly overridden in config.
var smtpProviderTable = map[string]struct {
	Host string
	Port int
}{
	"gmail.com":   {"smtp.gmail.com", 587},
	"outlook.com": {"smtp.office365.com", 587},
	"hotmail.com": {"smtp.office365.com", 587},
	"qq.com":      {"smtp.qq.com", 587},
	"163.com":     {"smtp.163.com", 587},
}

// Email sends the report as an HTML message with an embedded CSS
// theme. Host/Port are resolved from From's domain unless explicitly
// overridden.
type Email struct {
	From     string
	Password string
	To       []string
	Host     string
	Port     int
}

func NewEmail(from, password string, to []string, hostOverride string, portOverride int) *Email {
	e := &Email{From: from, Password: password, To: to, Host: hostOverride, Port: portOverride}
	if e.Host == "" {
		if p, ok := lookupSMTPProvider(from); ok {
			e.Host, e.Port = p.Host, p.Port
		}
	}
	if e.Port == 0 {
		e.Port = 587
	}
	return e
}

func lookupSMTPProvider(address string) (struct {
	Host string
	Port int
}, bool) {
	parts := strings.SplitN(address, "@", 2)
	if len(parts) != 2 {
		return struct {
			Host string
			Port int
		}{}, false
	}
	p, ok := smtpProviderTable[strings.ToLower(parts[1])]
	return p, ok
}

func (e *Email) Name() string { return "email" }
func (e *Email) Budget() int  { return emailBudget }

func (e *Email) Send(ctx context.Context, chunk string, index, total int) error {
	if e.Host == "" {
		return fmt.Errorf("email: no SMTP host configured or inferable from %q", e.From)
	}
	subject := "Stock Analysis Report"
	if total > 1 {
		subject = fmt.Sprintf("%s (%d/%d)", subject, index, total)
	}

	html := notify.ToHTMLEmail(chunk)
	msg := buildMIMEMessage(e.From, e.To, subject, html)

	auth := smtp.PlainAuth("", e.From, e.Password, e.Host)
	addr := fmt.Sprintf("%s:%d", e.Host, e.Port)
	return smtp.SendMail(addr, auth, e.From, e.To, msg)
}

func buildMIMEMessage(from string, to []string, subject, htmlBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}
