package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

const (
	msg91V2URL = "https://control.msg91.com/api/v2/sendsms"
	msg91V1URL = "https://api.msg91.com/api/sendhttp.php"

	msg91Route   = "4"
	msg91Country = "91"
)

// MSG91Sender tries the v2 JSON API first and falls back to the legacy
// form endpoint, which is the one that accepts a DLT template id.
type MSG91Sender struct {
	authKey    string
	senderID   string
	templateID string
	v2URL      string
	v1URL      string
	httpClient *http.Client
}

func NewMSG91Sender(authKey, senderID, templateID string) *MSG91Sender {
	if senderID == "" {
		senderID = "TXTIND"
	}
	return &MSG91Sender{
		authKey:    authKey,
		senderID:   senderID,
		templateID: templateID,
		v2URL:      msg91V2URL,
		v1URL:      msg91V1URL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *MSG91Sender) Name() string { return "msg91" }

type msg91Request struct {
	Sender  string         `json:"sender"`
	Route   string         `json:"route"`
	Country string         `json:"country"`
	SMS     []msg91Message `json:"sms"`
}

type msg91Message struct {
	Message string   `json:"message"`
	To      []string `json:"to"`
}

type msg91Response struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (s *MSG91Sender) Send(ctx context.Context, to, body string) error {
	if err := validate(to, body); err != nil {
		return err
	}
	if s.authKey == "" {
		return ErrNotConfigured
	}

	ctx, span := tracer.Start(ctx, "sms.msg91.send")
	defer span.End()
	span.SetAttributes(attribute.String("sms.to", to))

	national := strings.TrimPrefix(to, "+91")

	v2Err := s.sendV2(ctx, national, body)
	if v2Err == nil {
		return nil
	}
	log.Warn().Err(v2Err).Str("to", to).Msg("MSG91 v2 send failed; trying legacy endpoint")

	if err := s.sendV1(ctx, national, body); err != nil {
		span.RecordError(err)
		return fmt.Errorf("msg91: v2: %v; v1: %w", v2Err, err)
	}
	return nil
}

func (s *MSG91Sender) sendV2(ctx context.Context, national, body string) error {
	payload, err := json.Marshal(msg91Request{
		Sender:  s.senderID,
		Route:   msg91Route,
		Country: msg91Country,
		SMS:     []msg91Message{{Message: body, To: []string{national}}},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.v2URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("authkey", s.authKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("msg91 v2 request: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ProviderError{Provider: "msg91", Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	var parsed msg91Response
	if err := json.Unmarshal(respBody, &parsed); err == nil && parsed.Type == "error" {
		return &ProviderError{Provider: "msg91", Status: resp.StatusCode, Body: parsed.Message}
	}
	return nil
}

func (s *MSG91Sender) sendV1(ctx context.Context, national, body string) error {
	q := url.Values{}
	q.Set("authkey", s.authKey)
	q.Set("mobiles", msg91Country+national)
	q.Set("message", body)
	q.Set("sender", s.senderID)
	q.Set("route", msg91Route)
	q.Set("country", msg91Country)
	if s.templateID != "" {
		q.Set("DLT_TE_ID", s.templateID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.v1URL+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("msg91 v1 request: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ProviderError{Provider: "msg91", Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return nil
}
