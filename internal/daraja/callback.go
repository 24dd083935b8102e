package daraja

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Safaricom reports transaction dates in local (Nairobi) time.
var nairobi = time.FixedZone("EAT", 3*60*60)

// Item represents a key-value pair from the callback metadata list
type Item struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value"`
}

// CallbackPayload represents the STK callback structure posted by the provider
type CallbackPayload struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []Item `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseCallback decodes a raw callback body
func ParseCallback(raw []byte) (*CallbackPayload, error) {
	var cb CallbackPayload
	if err := json.Unmarshal(raw, &cb); err != nil {
		return nil, fmt.Errorf("failed to unmarshal callback: %w", err)
	}
	if cb.Body.StkCallback.CheckoutRequestID == "" {
		return nil, fmt.Errorf("missing CheckoutRequestID in callback")
	}
	return &cb, nil
}

// CallbackMeta is the payment metadata carried by a successful callback
type CallbackMeta struct {
	Amount          decimal.Decimal
	ReceiptNumber   string
	TransactionDate *time.Time
	PhoneNumber     string
}

// Meta extracts the success metadata items (Amount, MpesaReceiptNumber,
// TransactionDate, PhoneNumber) from the callback's name/value list.
func (p *CallbackPayload) Meta() CallbackMeta {
	var meta CallbackMeta

	for _, item := range p.Body.StkCallback.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			if f, ok := item.Value.(float64); ok {
				meta.Amount = decimal.NewFromFloat(f)
			}
		case "MpesaReceiptNumber":
			if s, ok := item.Value.(string); ok {
				meta.ReceiptNumber = s
			}
		case "TransactionDate":
			if ts := parseTransactionDate(item.Value); ts != nil {
				meta.TransactionDate = ts
			}
		case "PhoneNumber":
			switch v := item.Value.(type) {
			case float64:
				meta.PhoneNumber = decimal.NewFromFloat(v).StringFixed(0)
			case string:
				meta.PhoneNumber = v
			}
		}
	}

	return meta
}

// parseTransactionDate handles the provider's yyyyMMddHHmmss numeric form,
// delivered as a JSON number (e.g. 20191219102115).
func parseTransactionDate(v interface{}) *time.Time {
	var raw string
	switch val := v.(type) {
	case float64:
		raw = decimal.NewFromFloat(val).StringFixed(0)
	case string:
		raw = val
	default:
		return nil
	}

	t, err := time.ParseInLocation("20060102150405", raw, nairobi)
	if err != nil {
		return nil
	}
	return &t
}
