package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kamikazebr/sentinel/pkg/models"
)

func TestClient_SendsKeyAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Sentinel-Key") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/api/unlock/totp" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body models.TOTPUnlockRequest
		json.NewDecoder(r.Body).Decode(&body)
		if body.DeviceID != "dev-1" || body.Code != "123456" {
			t.Errorf("unexpected body: %+v", body)
		}
		json.NewEncoder(w).Encode(models.UnlockResponse{Status: "unlocked", ExpiresAt: time.Unix(100, 0).UTC()})
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, "k").UnlockTOTP(context.Background(), "dev-1", "123456", 0)
	if err != nil {
		t.Fatalf("UnlockTOTP failed: %v", err)
	}
	if resp.Status != "unlocked" {
		t.Fatalf("expected unlocked, got %q", resp.Status)
	}
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/devices/dev-x/revoke":
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(models.ErrorResponse{Error: "Not Found", Message: "device dev-x: not found"})
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")

	err := client.Revoke(context.Background(), "dev-x")
	if StatusCode(err) != http.StatusNotFound {
		t.Fatalf("expected 404 APIError, got %v", err)
	}

	_, err = client.ListDevices(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestClient_PairingQRReturnsRawBytes(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("size") != "128" {
			t.Errorf("expected size=128, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, "").PairingQR(context.Background(), "dev-1", 128)
	if err != nil {
		t.Fatalf("PairingQR failed: %v", err)
	}
	if string(got) != string(png) {
		t.Fatalf("unexpected body %v", got)
	}
}
