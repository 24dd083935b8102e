package daraja

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// responseCodeAccepted is the push ResponseCode meaning the request was
// accepted for processing; anything else is a business rejection.
const responseCodeAccepted = "0"

// Result codes reported by callbacks and status queries.
const (
	ResultCodeSuccess   = 0
	ResultCodeCancelled = 1032
)

// queryUnavailableCode is the errorCode the status-query endpoint returns
// when it cannot answer yet (e.g. the push is still being processed).
// A transaction's state must not be downgraded on this outcome.
const queryUnavailableCode = "500.001.1001"

// failureResultCodes are callback/query result codes mapped to a failed
// transaction: insufficient funds, timeouts, wrong PIN and the generic
// provider failure buckets.
var failureResultCodes = map[int]bool{
	1:    true,
	1001: true,
	1019: true,
	1025: true,
	1037: true,
	2001: true,
	9999: true,
}

// Config holds the Daraja API endpoints and credentials for one shortcode
type Config struct {
	ShortCode   string
	Passkey     string
	STKPushURL  string
	QueryURL    string
	CallbackURL string
}

// Client issues signed STK push and status-query requests
type Client struct {
	cfg    Config
	tokens *TokenService
	client *http.Client
	now    func() time.Time
}

// NewClient creates a new Daraja API client
func NewClient(cfg Config, tokens *TokenService) *Client {
	return &Client{
		cfg:    cfg,
		tokens: tokens,
		now:    time.Now,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		},
	}
}

// WithClock overrides the clock, for tests.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// STKPushRequest represents the Daraja STK Push API request
type STKPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            string `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKPushResponse represents the Daraja STK Push API response
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// Accepted reports whether the provider accepted the push for processing
func (r *STKPushResponse) Accepted() bool {
	return r.ResponseCode == responseCodeAccepted
}

// STKPush sends a push prompt to the payer's phone. The phone number must
// already be normalized. A parsed response is returned for both acceptance
// and provider-level business rejection; a nil response with
// ErrGatewayUnavailable means no answer was received and no transaction
// record should be written.
func (c *Client) STKPush(ctx context.Context, phone string, amount decimal.Decimal, accountReference, description string) (*STKPushResponse, []byte, error) {
	token, err := c.tokens.GetToken(ctx)
	if err != nil {
		return nil, nil, err
	}

	timestamp, password := c.sign()

	stkReq := STKPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount.StringFixed(0), // No decimals for Safaricom
		PartyA:            phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  accountReference,
		TransactionDesc:   description,
	}

	respBody, status, err := c.post(ctx, c.cfg.STKPushURL, token, stkReq)
	if err != nil {
		return nil, nil, err
	}

	if status != http.StatusOK {
		return nil, nil, fmt.Errorf("%w: STK push returned status %d: %s", ErrGatewayUnavailable, status, string(respBody))
	}

	var stkResp STKPushResponse
	if err := json.Unmarshal(respBody, &stkResp); err != nil {
		return nil, nil, fmt.Errorf("%w: failed to unmarshal push response: %v", ErrGatewayUnavailable, err)
	}

	return &stkResp, respBody, nil
}

// QueryOutcome classifies a status-query result
type QueryOutcome int

const (
	QueryPending QueryOutcome = iota
	QuerySuccess
	QueryFailed
	QueryCancelled
	// QueryUnavailable means the provider could not answer the query; the
	// transaction's state must be left untouched.
	QueryUnavailable
)

// QueryResult is the interpreted outcome of one status query
type QueryResult struct {
	Outcome     QueryOutcome
	ResultCode  int
	Description string
}

type queryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type queryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

// QueryStatus asks the provider for the current state of a push attempt
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (*QueryResult, error) {
	token, err := c.tokens.GetToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp, password := c.sign()

	respBody, status, err := c.post(ctx, c.cfg.QueryURL, token, queryRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	})
	if err != nil {
		return nil, err
	}

	var qr queryResponse
	if err := json.Unmarshal(respBody, &qr); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal query response: %v", ErrGatewayUnavailable, err)
	}

	if qr.ErrorCode == queryUnavailableCode {
		return &QueryResult{Outcome: QueryUnavailable, Description: qr.ErrorMessage}, nil
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: status query returned status %d: %s", ErrGatewayUnavailable, status, string(respBody))
	}

	var resultCode int
	if _, err := fmt.Sscanf(qr.ResultCode, "%d", &resultCode); err != nil {
		return &QueryResult{Outcome: QueryPending, Description: qr.ResultDesc}, nil
	}

	return &QueryResult{
		Outcome:     ClassifyResultCode(resultCode),
		ResultCode:  resultCode,
		Description: qr.ResultDesc,
	}, nil
}

// ClassifyResultCode maps callback/query result codes onto outcomes. Codes
// outside the known sets leave the transaction pending.
func ClassifyResultCode(code int) QueryOutcome {
	switch {
	case code == ResultCodeSuccess:
		return QuerySuccess
	case code == ResultCodeCancelled:
		return QueryCancelled
	case failureResultCodes[code]:
		return QueryFailed
	}
	return QueryPending
}

// sign produces the request timestamp and the base64 password derived from
// shortcode+passkey+timestamp.
func (c *Client) sign() (timestamp, password string) {
	timestamp = c.now().Format("20060102150405")
	password = base64.StdEncoding.EncodeToString(
		[]byte(c.cfg.ShortCode + c.cfg.Passkey + timestamp),
	)
	return timestamp, password
}

func (c *Client) post(ctx context.Context, url, token string, payload interface{}) ([]byte, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to read response: %v", ErrGatewayUnavailable, err)
	}

	return respBody, resp.StatusCode, nil
}
