package daraja

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestTokens(t *testing.T) (*TokenService, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"test-token","expires_in":"3599"}`))
	}))
	return NewTokenService("key", "secret", srv.URL), srv.Close
}

func TestSTKPushSignsAndSendsRequest(t *testing.T) {
	tokens, closeTokens := newTestTokens(t)
	defer closeTokens()

	now := time.Date(2026, 3, 10, 14, 30, 5, 0, nairobi)
	wantTimestamp := "20260310143005"
	wantPassword := base64.StdEncoding.EncodeToString([]byte("174379" + "passkey" + wantTimestamp))

	var got STKPushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("Authorization = %q, want Bearer test-token", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode push request: %v", err)
		}
		w.Write([]byte(`{
			"MerchantRequestID":"29115-34620561-1",
			"CheckoutRequestID":"ws_CO_191220191020363925",
			"ResponseCode":"0",
			"ResponseDescription":"Success. Request accepted for processing",
			"CustomerMessage":"Success. Request accepted for processing"
		}`))
	}))
	defer srv.Close()

	client := NewClient(Config{
		ShortCode:   "174379",
		Passkey:     "passkey",
		STKPushURL:  srv.URL,
		CallbackURL: "https://example.com/payments/mpesa/callback",
	}, tokens).WithClock(func() time.Time { return now })

	resp, raw, err := client.STKPush(context.Background(), "254712345678", decimal.NewFromInt(185000), "ORD-100", "E-bike order")
	if err != nil {
		t.Fatalf("STKPush returned error: %v", err)
	}
	if !resp.Accepted() {
		t.Errorf("Accepted() = false for ResponseCode 0")
	}
	if resp.CheckoutRequestID != "ws_CO_191220191020363925" {
		t.Errorf("CheckoutRequestID = %q", resp.CheckoutRequestID)
	}
	if len(raw) == 0 {
		t.Error("raw response body is empty")
	}

	if got.Timestamp != wantTimestamp {
		t.Errorf("Timestamp = %q, want %q", got.Timestamp, wantTimestamp)
	}
	if got.Password != wantPassword {
		t.Errorf("Password = %q, want %q", got.Password, wantPassword)
	}
	if got.Amount != "185000" {
		t.Errorf("Amount = %q, want 185000", got.Amount)
	}
	if got.PhoneNumber != "254712345678" || got.PartyA != "254712345678" {
		t.Errorf("phone fields = %q/%q, want 254712345678", got.PhoneNumber, got.PartyA)
	}
	if got.PartyB != "174379" || got.BusinessShortCode != "174379" {
		t.Errorf("shortcode fields = %q/%q, want 174379", got.PartyB, got.BusinessShortCode)
	}
	if got.AccountReference != "ORD-100" {
		t.Errorf("AccountReference = %q, want ORD-100", got.AccountReference)
	}
	if got.TransactionType != "CustomerPayBillOnline" {
		t.Errorf("TransactionType = %q", got.TransactionType)
	}
}

func TestSTKPushBusinessRejection(t *testing.T) {
	tokens, closeTokens := newTestTokens(t)
	defer closeTokens()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"MerchantRequestID":"29115-34620561-2",
			"CheckoutRequestID":"ws_CO_191220191020363926",
			"ResponseCode":"1",
			"ResponseDescription":"Invalid Amount"
		}`))
	}))
	defer srv.Close()

	client := NewClient(Config{ShortCode: "174379", Passkey: "pk", STKPushURL: srv.URL}, tokens)

	resp, _, err := client.STKPush(context.Background(), "254712345678", decimal.NewFromInt(0), "ORD-101", "order")
	if err != nil {
		t.Fatalf("STKPush returned error on business rejection: %v", err)
	}
	if resp.Accepted() {
		t.Error("Accepted() = true for ResponseCode 1")
	}
}

func TestSTKPushGatewayError(t *testing.T) {
	tokens, closeTokens := newTestTokens(t)
	defer closeTokens()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(Config{ShortCode: "174379", Passkey: "pk", STKPushURL: srv.URL}, tokens)

	resp, _, err := client.STKPush(context.Background(), "254712345678", decimal.NewFromInt(100), "ORD-102", "order")
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Errorf("STKPush = %v, want ErrGatewayUnavailable", err)
	}
	if resp != nil {
		t.Error("expected nil response on gateway error")
	}
}

func TestQueryStatusOutcomes(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   QueryOutcome
	}{
		{
			"success",
			http.StatusOK,
			`{"ResponseCode":"0","ResultCode":"0","ResultDesc":"The service request is processed successfully."}`,
			QuerySuccess,
		},
		{
			"cancelled by user",
			http.StatusOK,
			`{"ResponseCode":"0","ResultCode":"1032","ResultDesc":"Request cancelled by user"}`,
			QueryCancelled,
		},
		{
			"insufficient funds",
			http.StatusOK,
			`{"ResponseCode":"0","ResultCode":"1","ResultDesc":"The balance is insufficient"}`,
			QueryFailed,
		},
		{
			"still processing",
			http.StatusInternalServerError,
			`{"requestId":"123","errorCode":"500.001.1001","errorMessage":"The transaction is being processed"}`,
			QueryUnavailable,
		},
		{
			"unknown code stays pending",
			http.StatusOK,
			`{"ResponseCode":"0","ResultCode":"4242","ResultDesc":"Mystery"}`,
			QueryPending,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tokens, closeTokens := newTestTokens(t)
			defer closeTokens()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := NewClient(Config{ShortCode: "174379", Passkey: "pk", QueryURL: srv.URL}, tokens)

			got, err := client.QueryStatus(context.Background(), "ws_CO_191220191020363925")
			if err != nil {
				t.Fatalf("QueryStatus returned error: %v", err)
			}
			if got.Outcome != tc.want {
				t.Errorf("Outcome = %v, want %v", got.Outcome, tc.want)
			}
		})
	}
}

func TestClassifyResultCode(t *testing.T) {
	cases := []struct {
		code int
		want QueryOutcome
	}{
		{0, QuerySuccess},
		{1032, QueryCancelled},
		{1, QueryFailed},
		{1037, QueryFailed},
		{2001, QueryFailed},
		{9999, QueryFailed},
		{555, QueryPending},
	}
	for _, tc := range cases {
		if got := ClassifyResultCode(tc.code); got != tc.want {
			t.Errorf("ClassifyResultCode(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}
