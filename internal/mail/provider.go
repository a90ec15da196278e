package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/pkg/httpretry"
	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/pkg/logger"
)

// ProviderTransport sends through a SparkPost-compatible transactional
// API: a JSON transmissions endpoint authenticated by a static API key.
type ProviderTransport struct {
	apiKey  string
	baseURL string
	client  httpretry.HTTPDoer
}

// NewProviderTransport creates a transactional provider transport.
// baseURL defaults to the SparkPost v1 API when empty.
func NewProviderTransport(apiKey, baseURL string) *ProviderTransport {
	if baseURL == "" {
		baseURL = "https://api.sparkpost.com/api/v1"
	}
	return &ProviderTransport{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  httpretry.NewRetryClient(nil, 3),
	}
}

// Send delivers a single email through the provider's transmissions API.
func (p *ProviderTransport) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("provider API key not configured")
	}

	transmission := map[string]interface{}{
		"recipients": []map[string]interface{}{
			{"address": map[string]string{"email": msg.To, "name": msg.ToName}},
		},
		"content": map[string]interface{}{
			"from":    map[string]string{"email": msg.FromEmail, "name": msg.FromName},
			"subject": msg.Subject,
			"html":    msg.HTMLContent,
		},
		"metadata": map[string]interface{}{
			"campaign_id": msg.CampaignID,
			"send_id":     msg.SendID,
		},
		"options": map[string]interface{}{
			// The tracking package injects its own pixel and click wraps.
			"open_tracking":  false,
			"click_tracking": false,
		},
	}

	jsonData, err := json.Marshal(transmission)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/transmissions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		logger.Error("provider send failed", "recipient", msg.To, "send_id", msg.SendID, "error", err.Error())
		return &SendResult{Success: false, Reason: err.Error(), Transport: "provider"}, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		logger.Warn("provider rejected send",
			"recipient", msg.To, "send_id", msg.SendID, "status", fmt.Sprintf("%d", resp.StatusCode))
		return &SendResult{
			Success:   false,
			Reason:    fmt.Sprintf("provider error %d: %s", resp.StatusCode, truncate(string(body), 200)),
			Transport: "provider",
		}, nil
	}

	var parsed struct {
		Results struct {
			ID                      string `json:"id"`
			TotalAcceptedRecipients int    `json:"total_accepted_recipients"`
		} `json:"results"`
	}
	json.Unmarshal(body, &parsed)

	return &SendResult{
		Success:   true,
		MessageID: parsed.Results.ID,
		Transport: "provider",
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
