package daraja

import (
	"testing"
	"time"
)

const successCallback = `{
	"Body": {
		"stkCallback": {
			"MerchantRequestID": "29115-34620561-1",
			"CheckoutRequestID": "ws_CO_191220191020363925",
			"ResultCode": 0,
			"ResultDesc": "The service request is processed successfully.",
			"CallbackMetadata": {
				"Item": [
					{"Name": "Amount", "Value": 185000.00},
					{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
					{"Name": "TransactionDate", "Value": 20260310143512},
					{"Name": "PhoneNumber", "Value": 254712345678}
				]
			}
		}
	}
}`

const cancelledCallback = `{
	"Body": {
		"stkCallback": {
			"MerchantRequestID": "29115-34620561-2",
			"CheckoutRequestID": "ws_CO_191220191020363926",
			"ResultCode": 1032,
			"ResultDesc": "Request cancelled by user."
		}
	}
}`

func TestParseCallbackSuccess(t *testing.T) {
	cb, err := ParseCallback([]byte(successCallback))
	if err != nil {
		t.Fatalf("ParseCallback returned error: %v", err)
	}
	if cb.Body.StkCallback.CheckoutRequestID != "ws_CO_191220191020363925" {
		t.Errorf("CheckoutRequestID = %q", cb.Body.StkCallback.CheckoutRequestID)
	}
	if cb.Body.StkCallback.ResultCode != 0 {
		t.Errorf("ResultCode = %d, want 0", cb.Body.StkCallback.ResultCode)
	}

	meta := cb.Meta()
	if meta.ReceiptNumber != "NLJ7RT61SV" {
		t.Errorf("ReceiptNumber = %q, want NLJ7RT61SV", meta.ReceiptNumber)
	}
	if meta.Amount.StringFixed(2) != "185000.00" {
		t.Errorf("Amount = %s, want 185000.00", meta.Amount)
	}
	if meta.PhoneNumber != "254712345678" {
		t.Errorf("PhoneNumber = %q", meta.PhoneNumber)
	}
	if meta.TransactionDate == nil {
		t.Fatal("TransactionDate not parsed")
	}
	want := time.Date(2026, 3, 10, 14, 35, 12, 0, nairobi)
	if !meta.TransactionDate.Equal(want) {
		t.Errorf("TransactionDate = %v, want %v", meta.TransactionDate, want)
	}
}

func TestParseCallbackCancelled(t *testing.T) {
	cb, err := ParseCallback([]byte(cancelledCallback))
	if err != nil {
		t.Fatalf("ParseCallback returned error: %v", err)
	}
	if cb.Body.StkCallback.ResultCode != 1032 {
		t.Errorf("ResultCode = %d, want 1032", cb.Body.StkCallback.ResultCode)
	}
	meta := cb.Meta()
	if meta.ReceiptNumber != "" {
		t.Errorf("ReceiptNumber = %q, want empty", meta.ReceiptNumber)
	}
}

func TestParseCallbackRejectsMissingCheckoutID(t *testing.T) {
	if _, err := ParseCallback([]byte(`{"Body":{"stkCallback":{"ResultCode":0}}}`)); err == nil {
		t.Error("expected error for callback without CheckoutRequestID")
	}
}

func TestParseCallbackRejectsInvalidJSON(t *testing.T) {
	if _, err := ParseCallback([]byte(`{not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
