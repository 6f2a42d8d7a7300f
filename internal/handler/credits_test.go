package handler

import (
	"net/http"
	"testing"
)

func TestCreditsBalance(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta, http.MethodGet, "/api/credits/", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["balance"] != float64(100) {
		t.Errorf("expected balance 100, got %v", result["balance"])
	}
	if result["accountId"] != testAccountID {
		t.Errorf("expected accountId %s, got %v", testAccountID, result["accountId"])
	}
}

func TestConfirmPurchase_Success(t *testing.T) {
	ta := setupApp(t)

	body := `{"paymentId": "pay_abc123", "plan": "professional"}`
	resp, err := doAuthRequest(t, ta, http.MethodPost, "/api/credits/confirm", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["creditsAdded"] != float64(250) {
		t.Errorf("expected creditsAdded 250, got %v", result["creditsAdded"])
	}
	if result["balance"] != float64(350) {
		t.Errorf("expected balance 350, got %v", result["balance"])
	}
}

func TestConfirmPurchase_UnknownPlan(t *testing.T) {
	ta := setupApp(t)

	body := `{"paymentId": "pay_abc123", "plan": "ultimate"}`
	resp, err := doAuthRequest(t, ta, http.MethodPost, "/api/credits/confirm", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
	assertErrorCode(t, parseJSON(t, resp), "VALIDATION_ERROR")
}

func TestConfirmPurchase_MissingPaymentID(t *testing.T) {
	ta := setupApp(t)

	body := `{"plan": "creator"}`
	resp, err := doAuthRequest(t, ta, http.MethodPost, "/api/credits/confirm", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}
