package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"lab-backend/internal/logger"
)

// SMSProvider sends a single text message
type SMSProvider interface {
	SendSMS(ctx context.Context, phone, message string) error
}

// SMSConfig holds SMS configuration
type SMSConfig struct {
	Route      string // "q" (quick), "dlt" (registered template), "v3" (promotional)
	SenderID   string // DLT and v3 routes
	TemplateID string // DLT route
}

const fast2SMSEndpoint = "https://www.fast2sms.com/dev/bulkV2"

// Fast2SMSService implements SMSProvider for Fast2SMS (India)
type Fast2SMSService struct {
	APIKey   string
	Config   SMSConfig
	Endpoint string
	Client   *http.Client
}

// NewFast2SMSService creates a new Fast2SMS service
func NewFast2SMSService(apiKey string, config SMSConfig) *Fast2SMSService {
	if config.Route == "" {
		config.Route = "q"
	}
	return &Fast2SMSService{
		APIKey:   apiKey,
		Config:   config,
		Endpoint: fast2SMSEndpoint,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *Fast2SMSService) query(phone, message string) url.Values {
	q := url.Values{}
	q.Set("authorization", s.APIKey)
	q.Set("numbers", phone)
	switch s.Config.Route {
	case "dlt":
		q.Set("route", "dlt")
		q.Set("sender_id", s.Config.SenderID)
		q.Set("message", s.Config.TemplateID)
		q.Set("variables_values", message)
		q.Set("flash", "0")
	case "v3":
		q.Set("route", "v3")
		q.Set("sender_id", s.Config.SenderID)
		q.Set("message", message)
		q.Set("language", "english")
	default:
		q.Set("route", "q")
		q.Set("message", message)
		q.Set("language", "english")
		q.Set("flash", "0")
	}
	return q
}

// SendSMS sends a single SMS message
func (s *Fast2SMSService) SendSMS(ctx context.Context, phone, message string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Endpoint+"?"+s.query(phone, message).Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create SMS request: %w", err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("SMS API error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp struct {
		Return    bool   `json:"return"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil || !apiResp.Return {
		return fmt.Errorf("SMS API error: %s", strings.TrimSpace(string(body)))
	}
	return nil
}

// Message is an SMS captured by MockSMSService
type Message struct {
	Phone string
	Text  string
}

// MockSMSService logs messages instead of sending them
type MockSMSService struct {
	mu   sync.Mutex
	sent []Message
}

func NewMockSMSService() *MockSMSService {
	return &MockSMSService{}
}

func (s *MockSMSService) SendSMS(_ context.Context, phone, message string) error {
	log := logger.WithComponent("sms-mock")
	log.Info().Str("to", phone).Str("message", message).Msg("mock SMS")

	s.mu.Lock()
	s.sent = append(s.sent, Message{Phone: phone, Text: message})
	s.mu.Unlock()
	return nil
}

// Sent returns a copy of the captured messages
func (s *MockSMSService) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}

// FormatPhone strips formatting and prefixes 10-digit Indian numbers with 91
func FormatPhone(phone string) string {
	var b strings.Builder
	for _, c := range phone {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	cleaned := b.String()
	if len(cleaned) == 10 {
		return "91" + cleaned
	}
	return cleaned
}
