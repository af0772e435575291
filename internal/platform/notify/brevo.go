package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	cfgpkg "github.com/fatflowers/iftar/pkg/config"
)

var ErrNotConfigured = errors.New("notification provider is not configured")

// Message is one transactional email or SMS. For email TemplateID is the provider template id;
// for SMS it is the message text with {{param}} placeholders.
type Message struct {
	To         string         `json:"to"`
	TemplateID string         `json:"template_id"`
	Params     map[string]any `json:"params"`
}

// EmailSender sends template emails through the Brevo transactional API.
type EmailSender struct {
	cfg  cfgpkg.EmailConfig
	http *http.Client
}

func NewEmailSender(cfg *cfgpkg.Config) *EmailSender {
	return &EmailSender{cfg: cfg.Notify.Email, http: &http.Client{Timeout: 10 * time.Second}}
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoEmail struct {
	Sender     brevoContact   `json:"sender"`
	To         []brevoContact `json:"to"`
	TemplateID int64          `json:"templateId"`
	Params     map[string]any `json:"params,omitempty"`
}

func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	if s.cfg.APIKey == "" {
		return ErrNotConfigured
	}
	templateID, err := strconv.ParseInt(strings.TrimSpace(msg.TemplateID), 10, 64)
	if err != nil {
		return fmt.Errorf("email template id %q: %w", msg.TemplateID, err)
	}
	return post(ctx, s.http, s.cfg.BaseURL+"/smtp/email", s.cfg.APIKey, brevoEmail{
		Sender:     brevoContact{Email: s.cfg.FromEmail, Name: s.cfg.FromName},
		To:         []brevoContact{{Email: msg.To}},
		TemplateID: templateID,
		Params:     msg.Params,
	})
}

// SMSSender sends transactional SMS through the Brevo SMS API.
type SMSSender struct {
	cfg  cfgpkg.SMSConfig
	http *http.Client
}

func NewSMSSender(cfg *cfgpkg.Config) *SMSSender {
	return &SMSSender{cfg: cfg.Notify.SMS, http: &http.Client{Timeout: 10 * time.Second}}
}

type brevoSMS struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
	Type      string `json:"type"`
}

func (s *SMSSender) Send(ctx context.Context, msg Message) error {
	if s.cfg.APIKey == "" {
		return ErrNotConfigured
	}
	return post(ctx, s.http, s.cfg.BaseURL+"/transactionalSMS/sms", s.cfg.APIKey, brevoSMS{
		Sender:    s.cfg.Sender,
		Recipient: msg.To,
		Content:   Render(msg.TemplateID, msg.Params),
		Type:      "transactional",
	})
}

var placeholder = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Render substitutes {{key}} placeholders. Unknown keys render empty.
func Render(text string, params map[string]any) string {
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		if v, ok := params[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
		return ""
	})
}

func post(ctx context.Context, client *http.Client, url, apiKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
