package backend

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/acotrina/fise-coupon-service/environments"
	"github.com/acotrina/fise-coupon-service/internal/domain"
	"github.com/acotrina/fise-coupon-service/pkg/logger"
)

const registrarPath = "/sl/fise/registrar-sms"

// Client delivers finalized validation records to the system of record.
// Delivery retries up to MaxAttempts total attempts with a fixed wait in
// between; the caller's ledger update is never rolled back on failure, so
// the endpoint must tolerate at-least-once submission.
type Client struct {
	httpClient *resty.Client
}

func NewClient(cfg environments.BackendConfig) *Client {
	retries := cfg.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.AttemptTimeout).
		SetRetryCount(retries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryWait).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() < 200 || r.StatusCode() >= 300
		})

	return &Client{httpClient: httpClient}
}

// Submit posts one record. False means every attempt failed; the caller
// logs and moves on.
func (c *Client) Submit(ctx context.Context, record *domain.SyncRecord) bool {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(record).
		Post(registrarPath)

	if err != nil {
		logger.Errorf("Backend sync failed for coupon %s: %v", record.FiseCodigo, err)
		return false
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		logger.Errorf("Backend sync for coupon %s returned status %d: %s",
			record.FiseCodigo, resp.StatusCode(), resp.String())
		return false
	}

	logger.Infof("Backend sync completed for coupon %s (dni %s)", record.FiseCodigo, record.UsrDNI)
	return true
}
