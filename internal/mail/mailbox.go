package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/domain"
	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/pkg/httpretry"
	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/pkg/logger"
)

// tokenRefreshWindow is the safety margin before token expiry: tokens
// expiring inside this window are refreshed before use.
const tokenRefreshWindow = 5 * time.Minute

// ConnectionStore is the persistence contract for mailbox connections.
type ConnectionStore interface {
	// GetConnection returns the user's mailbox connection, or nil when
	// the user has none.
	GetConnection(ctx context.Context, userID string) (*domain.MailboxConnection, error)

	// UpdateConnectionTokens persists a rotated token pair. Called
	// before the refreshed token is used, so a crash mid-send never
	// orphans a consumed refresh token.
	UpdateConnectionTokens(ctx context.Context, userID, accessToken, refreshToken string, expiresAt time.Time) error
}

// MailboxTransport sends mail as a user through their connected
// Microsoft 365 mailbox using the Graph sendMail endpoint. Token
// refresh failures are surfaced to the caller; this transport never
// falls back to another backend on its own.
type MailboxTransport struct {
	conns   ConnectionStore
	oauth   *oauth2.Config
	sendURL string
	client  httpretry.HTTPDoer
}

// NewMailboxTransport creates a mailbox transport for the given OAuth
// application. tenant defaults to the multi-tenant "common" endpoint.
func NewMailboxTransport(conns ConnectionStore, clientID, clientSecret, tenant string) *MailboxTransport {
	if tenant == "" {
		tenant = "common"
	}
	return &MailboxTransport{
		conns: conns,
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     microsoft.AzureADEndpoint(tenant),
			Scopes:       []string{"https://graph.microsoft.com/Mail.Send", "offline_access"},
		},
		sendURL: "https://graph.microsoft.com/v1.0/me/sendMail",
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// SetEndpoints overrides the token and send endpoints. Used in tests.
func (t *MailboxTransport) SetEndpoints(tokenURL, sendURL string) {
	if tokenURL != "" {
		t.oauth.Endpoint = oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams}
	}
	if sendURL != "" {
		t.sendURL = sendURL
	}
}

// SendAs delivers a message through userID's mailbox connection.
// Returns ErrNoConnection when the user has no active connection, so
// the adapter can decide whether a fallback applies.
func (t *MailboxTransport) SendAs(ctx context.Context, userID string, msg *Message) (*SendResult, error) {
	conn, err := t.conns.GetConnection(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load mailbox connection: %w", err)
	}
	if conn == nil || !conn.IsActive {
		return nil, ErrNoConnection
	}

	accessToken := conn.AccessToken
	if conn.ExpiresWithin(tokenRefreshWindow) {
		accessToken, err = t.refresh(ctx, conn)
		if err != nil {
			// Surfaced, not retried with the stale token and never
			// silently rerouted to another transport.
			return nil, fmt.Errorf("refresh mailbox token: %w", err)
		}
	}

	payload := map[string]interface{}{
		"message": map[string]interface{}{
			"subject": msg.Subject,
			"body": map[string]string{
				"contentType": "HTML",
				"content":     msg.HTMLContent,
			},
			"toRecipients": []map[string]interface{}{
				{"emailAddress": map[string]string{"address": msg.To, "name": msg.ToName}},
			},
		},
		"saveToSentItems": true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.sendURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		logger.Error("mailbox send failed", "recipient", msg.To, "send_id", msg.SendID, "error", err.Error())
		return &SendResult{Success: false, Reason: err.Error(), Transport: "mailbox"}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		logger.Warn("mailbox send rejected",
			"recipient", msg.To, "send_id", msg.SendID, "status", fmt.Sprintf("%d", resp.StatusCode))
		return &SendResult{
			Success:   false,
			Reason:    fmt.Sprintf("mailbox error %d: %s", resp.StatusCode, truncate(string(respBody), 200)),
			Transport: "mailbox",
		}, nil
	}

	return &SendResult{Success: true, Transport: "mailbox"}, nil
}

// refresh exchanges the connection's refresh token for a new pair and
// persists it before returning the fresh access token.
func (t *MailboxTransport) refresh(ctx context.Context, conn *domain.MailboxConnection) (string, error) {
	tok, err := t.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: conn.RefreshToken}).Token()
	if err != nil {
		return "", err
	}

	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = conn.RefreshToken
	}

	if err := t.conns.UpdateConnectionTokens(ctx, conn.UserID, tok.AccessToken, refreshToken, tok.Expiry); err != nil {
		return "", fmt.Errorf("persist rotated tokens: %w", err)
	}

	conn.AccessToken = tok.AccessToken
	conn.RefreshToken = refreshToken
	conn.ExpiresAt = tok.Expiry
	return tok.AccessToken, nil
}
