package gcal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/slotbookhq/slotbook/services/booking-service/internal/interval"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/model"
)

const (
	defaultTokenURL    = "https://oauth2.googleapis.com/token"
	defaultFreeBusyURL = "https://www.googleapis.com/calendar/v3/freeBusy"

	// Refresh when the stored access token is within this window of expiry.
	refreshSlack = 2 * time.Minute
)

// ErrNotConnected is returned when the provider has no stored calendar
// credential. The busy aggregator treats it like any other external
// failure and continues without calendar data.
var ErrNotConnected = errors.New("gcal: provider has no connected calendar")

// CredentialStore persists per-provider OAuth credential sets.
type CredentialStore interface {
	Get(ctx context.Context, providerID string) (model.CalendarAccount, error)
	UpdateAccessToken(ctx context.Context, providerID string, accessToken string, expiry time.Time) error
}

// Client queries the Google Calendar free/busy API on behalf of providers,
// refreshing access tokens from the stored refresh token as they expire.
// It satisfies the schedule package's FreeBusySource.
type Client struct {
	creds        CredentialStore
	clientID     string
	clientSecret string
	tokenURL     string
	freeBusyURL  string
	http         *http.Client
}

func NewClient(creds CredentialStore, clientID string, clientSecret string) *Client {
	return &Client{
		creds:        creds,
		clientID:     strings.TrimSpace(clientID),
		clientSecret: strings.TrimSpace(clientSecret),
		tokenURL:     defaultTokenURL,
		freeBusyURL:  defaultFreeBusyURL,
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// WithEndpoints overrides the Google endpoints. Used in tests.
func (c *Client) WithEndpoints(tokenURL string, freeBusyURL string) *Client {
	c.tokenURL = tokenURL
	c.freeBusyURL = freeBusyURL
	return c
}

type freeBusyRequest struct {
	TimeMin string             `json:"timeMin"`
	TimeMax string             `json:"timeMax"`
	Items   []freeBusyCalendar `json:"items"`
}

type freeBusyCalendar struct {
	ID string `json:"id"`
}

type freeBusyResponse struct {
	Calendars map[string]struct {
		Busy []struct {
			Start time.Time `json:"start"`
			End   time.Time `json:"end"`
		} `json:"busy"`
		Errors []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"calendars"`
}

// FreeBusy returns the busy windows across the provider's checked calendars
// over [rangeStart, rangeEnd). A provider without a connected account or
// without checked calendars yields ErrNotConnected and an empty list
// respectively.
func (c *Client) FreeBusy(ctx context.Context, providerID string, rangeStart, rangeEnd time.Time) ([]interval.Span, error) {
	account, err := c.creds.Get(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if len(account.CheckedCalendars) == 0 {
		return nil, nil
	}

	token, err := c.accessToken(ctx, account)
	if err != nil {
		return nil, err
	}

	body := freeBusyRequest{
		TimeMin: rangeStart.UTC().Format(time.RFC3339),
		TimeMax: rangeEnd.UTC().Format(time.RFC3339),
	}
	for _, id := range account.CheckedCalendars {
		body.Items = append(body.Items, freeBusyCalendar{ID: id})
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.freeBusyURL, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gcal: freeBusy returned %d", resp.StatusCode)
	}

	var parsed freeBusyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	var spans []interval.Span
	for _, cal := range parsed.Calendars {
		for _, b := range cal.Busy {
			spans = append(spans, interval.Span{Start: b.Start, End: b.End})
		}
	}
	return spans, nil
}

// accessToken returns a usable access token for the account, performing a
// refresh-token grant and persisting the result when the stored token is
// expired or close to it.
func (c *Client) accessToken(ctx context.Context, account model.CalendarAccount) (string, error) {
	if account.AccessToken != "" && time.Until(account.TokenExpiry) > refreshSlack {
		return account.AccessToken, nil
	}
	if account.RefreshToken == "" {
		return "", errors.New("gcal: access token expired and no refresh token stored")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", account.RefreshToken)
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("gcal: token refresh returned %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if payload.AccessToken == "" {
		return "", errors.New("gcal: token refresh response missing access_token")
	}

	expiry := time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	if err := c.creds.UpdateAccessToken(ctx, account.ProviderID, payload.AccessToken, expiry); err != nil {
		return "", err
	}
	return payload.AccessToken, nil
}
