package settlement

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrPermanent marks a dispatch failure that retrying cannot fix.
var ErrPermanent = errors.New("settlement: permanent dispatch failure")

// Dispatcher pays a job on its destination chain and returns the external
// reference of the payout.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *Job) (string, error)
}

// HTTPDispatcher posts jobs to a bridge webhook. Bodies are signed with
// HMAC-SHA256 in X-Settlement-Signature when a secret is configured.
type HTTPDispatcher struct {
	endpoint string
	secret   []byte
	client   *http.Client
}

func NewHTTPDispatcher(endpoint, secret string, timeout time.Duration) (*HTTPDispatcher, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("settlement: dispatcher endpoint required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPDispatcher{
		endpoint: endpoint,
		secret:   []byte(secret),
		client:   &http.Client{Timeout: timeout},
	}, nil
}

type dispatchRequest struct {
	JobID         string `json:"jobId"`
	EventType     string `json:"eventType"`
	Account       string `json:"account"`
	ChainID       uint64 `json:"chainId"`
	RewardID      uint64 `json:"rewardId"`
	RewardType    string `json:"rewardType"`
	RewardAddress string `json:"rewardAddress"`
	Amount        string `json:"amount"`
	TokenID       uint64 `json:"tokenId"`
	Reference     string `json:"reference"`
}

type dispatchResponse struct {
	Reference string `json:"reference"`
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, job *Job) (string, error) {
	payload, err := json.Marshal(dispatchRequest{
		JobID:         job.ID.String(),
		EventType:     job.EventType,
		Account:       job.Account,
		ChainID:       job.ChainID,
		RewardID:      job.RewardID,
		RewardType:    job.RewardType,
		RewardAddress: job.RewardAddress,
		Amount:        job.Amount,
		TokenID:       job.TokenID,
		Reference:     job.Reference,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode: %v", ErrPermanent, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", job.EventKey)
	if len(d.secret) > 0 {
		req.Header.Set("X-Settlement-Signature", sign(d.secret, payload))
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: %s: %s", ErrPermanent, resp.Status, strings.TrimSpace(string(body)))
	default:
		return "", fmt.Errorf("settlement: bridge returned %s", resp.Status)
	}
	var out dispatchResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			return "", fmt.Errorf("settlement: decode bridge response: %w", err)
		}
	}
	return out.Reference, nil
}

func sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
