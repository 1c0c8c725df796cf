package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"namelis/internal/config"
	"namelis/internal/models"
)

func adminTestConfig(cfg *config.Config) {
	cfg.API = config.APIConfig{
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{
				{Key: "reader-key", Extra: "reader-extra", Name: "crm", Permissions: []string{"read:bookings"}},
				{Key: "export-key", Extra: "export-extra", Name: "backoffice", Permissions: []string{"read:bookings", "export:bookings"}},
				{Key: "open-key", Extra: "open-extra", Name: "ops"},
			},
		},
	}
}

func (e *testEnv) doAdmin(t *testing.T, method, path, key, extra string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.ts.URL+path, http.NoBody)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if key != "" {
		req.Header.Set("x-api-key", key)
	}
	if extra != "" {
		req.Header.Set("x-api-extra", extra)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

func (e *testEnv) doAdminJSON(t *testing.T, method, path, key, extra, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", key)
	req.Header.Set("x-api-extra", extra)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

func seedBooking(t *testing.T, env *testEnv, cabinID, cabinName, date, slot string) *models.Booking {
	t.Helper()
	booking := &models.Booking{
		CabinID:   cabinID,
		CabinName: cabinName,
		Date:      date,
		Time:      slot,
		UserID:    "anonymous",
		UserEmail: "jonas@example.lt",
		FullName:  "Jonas Jonaitis",
		Status:    models.StatusConfirmed,
	}
	if err := env.db.CreateBookingWithLock(context.Background(), booking); err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	return booking
}

func TestAdminAuth(t *testing.T) {
	env := newTestEnv(t, adminTestConfig)
	seedBooking(t, env, "sauna-a", "Sauna A", env.date(1), "10:00")

	t.Run("MissingHeaders", func(t *testing.T) {
		resp := env.doAdmin(t, http.MethodGet, "/api/v1/bookings", "", "")
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", resp.StatusCode)
		}
	})

	t.Run("InvalidKey", func(t *testing.T) {
		resp := env.doAdmin(t, http.MethodGet, "/api/v1/bookings", "wrong", "reader-extra")
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", resp.StatusCode)
		}
	})

	t.Run("InvalidExtra", func(t *testing.T) {
		resp := env.doAdmin(t, http.MethodGet, "/api/v1/bookings", "reader-key", "wrong")
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", resp.StatusCode)
		}
	})

	t.Run("ValidReader", func(t *testing.T) {
		resp := env.doAdmin(t, http.MethodGet, "/api/v1/bookings", "reader-key", "reader-extra")
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		var body struct {
			Bookings []models.Booking `json:"bookings"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if len(body.Bookings) != 1 {
			t.Fatalf("expected 1 booking, got %d", len(body.Bookings))
		}
		if body.Bookings[0].CabinID != "sauna-a" {
			t.Errorf("expected sauna-a, got %s", body.Bookings[0].CabinID)
		}
	})

	t.Run("ReaderCannotExport", func(t *testing.T) {
		resp := env.doAdmin(t, http.MethodGet, "/api/v1/bookings/export", "reader-key", "reader-extra")
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("expected 403, got %d", resp.StatusCode)
		}
	})

	t.Run("ExporterGetsWorkbook", func(t *testing.T) {
		resp := env.doAdmin(t, http.MethodGet, "/api/v1/bookings/export", "export-key", "export-extra")
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
			t.Errorf("unexpected content type %q", ct)
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		// XLSX is a zip container.
		if !bytes.HasPrefix(data, []byte("PK")) {
			t.Errorf("expected xlsx payload")
		}
	})

	t.Run("EmptyPermissionsAllowAll", func(t *testing.T) {
		resp := env.doAdmin(t, http.MethodGet, "/api/v1/bookings/export", "open-key", "open-extra")
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}
	})

	t.Run("PublicEndpointsBypassAuth", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/cabins", "")
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200 without keys, got %d", resp.StatusCode)
		}
	})

	t.Run("InvalidFilterDate", func(t *testing.T) {
		resp := env.doAdmin(t, http.MethodGet, "/api/v1/bookings?from=bad", "reader-key", "reader-extra")
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})
}

func TestAdminAuthDisabled(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.doAdmin(t, http.MethodGet, "/api/v1/bookings", "", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 with auth disabled, got %d", resp.StatusCode)
	}
}

func TestAdminRateLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		adminTestConfig(cfg)
		cfg.API.RateLimit = config.APIRateLimitConfig{RPS: 1, Burst: 1}
	})

	resp1 := env.doAdmin(t, http.MethodGet, "/api/v1/bookings", "reader-key", "reader-extra")
	resp1.Body.Close()
	if resp1.StatusCode != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", resp1.StatusCode)
	}

	resp2 := env.doAdmin(t, http.MethodGet, "/api/v1/bookings", "reader-key", "reader-extra")
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second request: expected 429, got %d", resp2.StatusCode)
	}
}

func TestBookingsFilter(t *testing.T) {
	env := newTestEnv(t, adminTestConfig)
	seedBooking(t, env, "sauna-a", "Sauna A", env.date(1), "10:00")
	seedBooking(t, env, "hot-tub", "Hot Tub", env.date(2), "12:00")

	resp := env.doAdmin(t, http.MethodGet, "/api/v1/bookings?cabin=hot-tub", "reader-key", "reader-extra")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Bookings []models.Booking `json:"bookings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Bookings) != 1 {
		t.Fatalf("expected 1 booking, got %d", len(body.Bookings))
	}
	if body.Bookings[0].CabinID != "hot-tub" {
		t.Errorf("expected hot-tub, got %s", body.Bookings[0].CabinID)
	}
}

func TestAdminCancelBooking(t *testing.T) {
	env := newTestEnv(t, adminTestConfig)
	booking := seedBooking(t, env, "sauna-a", "Sauna A", env.date(1), "10:00")
	cancelPath := fmt.Sprintf("/api/v1/bookings/%d/cancel", booking.ID)

	t.Run("ReaderForbidden", func(t *testing.T) {
		resp := env.doAdminJSON(t, http.MethodPost, cancelPath, "reader-key", "reader-extra", `{"version":1}`)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("expected 403, got %d", resp.StatusCode)
		}
	})

	t.Run("VersionRequired", func(t *testing.T) {
		resp := env.doAdminJSON(t, http.MethodPost, cancelPath, "open-key", "open-extra", `{}`)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("InvalidID", func(t *testing.T) {
		resp := env.doAdminJSON(t, http.MethodPost, "/api/v1/bookings/abc/cancel", "open-key", "open-extra", `{"version":1}`)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		resp := env.doAdminJSON(t, http.MethodGet, cancelPath, "open-key", "open-extra", "")
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", resp.StatusCode)
		}
	})

	t.Run("UnknownAction", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/bookings/%d/refund", booking.ID)
		resp := env.doAdminJSON(t, http.MethodPost, path, "open-key", "open-extra", `{"version":1}`)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		resp := env.doAdminJSON(t, http.MethodPost, cancelPath, "open-key", "open-extra", `{"version":1}`)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		var got models.Booking
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if got.Status != models.StatusCancelled {
			t.Errorf("expected status cancelled, got %s", got.Status)
		}
		if got.Version != 2 {
			t.Errorf("expected version 2, got %d", got.Version)
		}
	})

	t.Run("StaleVersion", func(t *testing.T) {
		resp := env.doAdminJSON(t, http.MethodPost, cancelPath, "open-key", "open-extra", `{"version":1}`)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("expected 409, got %d", resp.StatusCode)
		}
	})

	t.Run("MissingBooking", func(t *testing.T) {
		resp := env.doAdminJSON(t, http.MethodPost, "/api/v1/bookings/9999/cancel", "open-key", "open-extra", `{"version":1}`)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})
}
