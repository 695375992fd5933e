package gcal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/slotbookhq/slotbook/services/booking-service/internal/model"
)

type memCreds struct {
	account model.CalendarAccount
	err     error
	updated bool
}

func (m *memCreds) Get(_ context.Context, _ string) (model.CalendarAccount, error) {
	return m.account, m.err
}

func (m *memCreds) UpdateAccessToken(_ context.Context, _ string, token string, expiry time.Time) error {
	m.account.AccessToken = token
	m.account.TokenExpiry = expiry
	m.updated = true
	return nil
}

func TestFreeBusyParsesBusyWindows(t *testing.T) {
	var gotAuth string
	var gotReq freeBusyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"calendars":{"primary":{"busy":[
			{"start":"2026-03-02T09:00:00Z","end":"2026-03-02T10:00:00Z"},
			{"start":"2026-03-02T13:00:00Z","end":"2026-03-02T13:30:00Z"}
		]}}}`))
	}))
	defer srv.Close()

	creds := &memCreds{account: model.CalendarAccount{
		ProviderID:       "prov-1",
		AccessToken:      "tok-live",
		TokenExpiry:      time.Now().Add(time.Hour),
		CheckedCalendars: []string{"primary"},
	}}
	client := NewClient(creds, "cid", "secret").WithEndpoints(srv.URL+"/token", srv.URL)

	rangeStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	rangeEnd := rangeStart.Add(24 * time.Hour)
	spans, err := client.FreeBusy(context.Background(), "prov-1", rangeStart, rangeEnd)
	if err != nil {
		t.Fatalf("FreeBusy: %v", err)
	}
	if len(spans) != 2 {
		t.Fatalf("expected 2 busy spans, got %d", len(spans))
	}
	if gotAuth != "Bearer tok-live" {
		t.Fatalf("expected stored token to be sent, got %q", gotAuth)
	}
	if gotReq.TimeMin != "2026-03-02T00:00:00Z" || gotReq.TimeMax != "2026-03-03T00:00:00Z" {
		t.Fatalf("unexpected range: %s .. %s", gotReq.TimeMin, gotReq.TimeMax)
	}
	if len(gotReq.Items) != 1 || gotReq.Items[0].ID != "primary" {
		t.Fatalf("unexpected calendar items: %+v", gotReq.Items)
	}
	want := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if !spans[0].Start.Equal(want) && !spans[1].Start.Equal(want) {
		t.Fatalf("missing 09:00 busy span: %+v", spans)
	}
}

func TestFreeBusyRefreshesExpiredToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") != "refresh-1" {
			t.Errorf("unexpected token request: %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-fresh","expires_in":3600}`))
	})
	mux.HandleFunc("/freeBusy", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-fresh" {
			t.Errorf("expected refreshed token, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"calendars":{"primary":{"busy":[]}}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	creds := &memCreds{account: model.CalendarAccount{
		ProviderID:       "prov-1",
		AccessToken:      "tok-stale",
		RefreshToken:     "refresh-1",
		TokenExpiry:      time.Now().Add(-time.Minute),
		CheckedCalendars: []string{"primary"},
	}}
	client := NewClient(creds, "cid", "secret").WithEndpoints(srv.URL+"/token", srv.URL+"/freeBusy")

	_, err := client.FreeBusy(context.Background(), "prov-1", time.Now(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("FreeBusy: %v", err)
	}
	if !creds.updated {
		t.Fatal("expected refreshed token to be persisted")
	}
	if creds.account.AccessToken != "tok-fresh" {
		t.Fatalf("stored token = %q", creds.account.AccessToken)
	}
}

func TestFreeBusySkipsWhenNoCheckedCalendars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	creds := &memCreds{account: model.CalendarAccount{
		ProviderID:  "prov-1",
		AccessToken: "tok-live",
		TokenExpiry: time.Now().Add(time.Hour),
	}}
	client := NewClient(creds, "cid", "secret").WithEndpoints(srv.URL+"/token", srv.URL)

	spans, err := client.FreeBusy(context.Background(), "prov-1", time.Now(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("FreeBusy: %v", err)
	}
	if spans != nil {
		t.Fatalf("expected no spans, got %+v", spans)
	}
}

func TestFreeBusyPropagatesCredentialError(t *testing.T) {
	creds := &memCreds{err: ErrNotConnected}
	client := NewClient(creds, "cid", "secret")

	_, err := client.FreeBusy(context.Background(), "prov-1", time.Now(), time.Now().Add(time.Hour))
	if err == nil {
		t.Fatal("expected error for missing credential")
	}
}
