package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/screenfund/backend/internal/apperr"
	"github.com/screenfund/backend/internal/models"
)

// Paystack talks to the Paystack REST API. All calls carry the client
// timeout; ambiguous outcomes surface as StatusUnknown so the caller
// can reconcile via Verify.
type Paystack struct {
	baseURL string
	secret  string
	client  *http.Client
}

func NewPaystack(baseURL, secret string, timeout time.Duration) *Paystack {
	return &Paystack{
		baseURL: baseURL,
		secret:  secret,
		client:  &http.Client{Timeout: timeout},
	}
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (p *Paystack) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.secret)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &apperr.ProviderError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &apperr.ProviderError{Op: method + " " + path, Err: err}
	}
	if resp.StatusCode >= 500 {
		return nil, &apperr.ProviderError{Op: method + " " + path,
			Err: fmt.Errorf("provider %d: %s", resp.StatusCode, raw)}
	}

	var env paystackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &apperr.ProviderError{Op: method + " " + path, Err: err}
	}
	if !env.Status {
		// Definitive rejection, not an ambiguous transport failure.
		return nil, fmt.Errorf("provider rejected %s: %s", path, env.Message)
	}
	return env.Data, nil
}

func (p *Paystack) InitializeCharge(ctx context.Context, reference string, amount int64, email string) (ChargeInit, error) {
	data, err := p.do(ctx, http.MethodPost, "/transaction/initialize", map[string]any{
		"reference": reference,
		"amount":    amount,
		"email":     email,
	})
	if err != nil {
		return ChargeInit{}, err
	}
	var out ChargeInit
	if err := json.Unmarshal(data, &out); err != nil {
		return ChargeInit{}, &apperr.ProviderError{Op: "initialize", Reference: reference, Err: err}
	}
	if out.Reference == "" {
		out.Reference = reference
	}
	return out, nil
}

func (p *Paystack) SubmitPayout(ctx context.Context, batchReference string, bank models.BankDetails, netAmount int64) (Status, error) {
	data, err := p.do(ctx, http.MethodPost, "/transfer", map[string]any{
		"source":         "balance",
		"reference":      batchReference,
		"amount":         netAmount,
		"bank_code":      bank.BankCode,
		"account_number": bank.AccountNumber,
		"account_name":   bank.AccountName,
		"currency":       "NGN",
	})
	if err != nil {
		// Transport errors and 5xx leave the transfer in an unknown
		// state; explicit rejections are definitive failures.
		if apperr.IsProvider(err) {
			return StatusUnknown, err
		}
		return StatusFailed, err
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return StatusUnknown, &apperr.ProviderError{Op: "transfer", Reference: batchReference, Err: err}
	}
	return mapStatus(out.Status), nil
}

func (p *Paystack) Verify(ctx context.Context, reference string) (Status, error) {
	data, err := p.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil)
	if err != nil {
		return StatusUnknown, err
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return StatusUnknown, &apperr.ProviderError{Op: "verify", Reference: reference, Err: err}
	}
	return mapStatus(out.Status), nil
}

func mapStatus(s string) Status {
	switch s {
	case "success":
		return StatusSuccess
	case "failed", "reversed", "abandoned":
		return StatusFailed
	case "pending", "otp", "processing":
		return StatusPending
	default:
		return StatusUnknown
	}
}
