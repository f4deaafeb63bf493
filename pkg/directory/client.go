package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/semaphore"

	"github.com/acotrina/fise-coupon-service/environments"
	"github.com/acotrina/fise-coupon-service/internal/domain"
	"github.com/acotrina/fise-coupon-service/pkg/logger"
)

// ErrNotFound covers every way a lookup can come back empty: timeout,
// transport error, non-2xx status and an empty result set. Callers only
// care that the phone could not be resolved; the distinction is logged here.
var ErrNotFound = errors.New("directory: agent not found")

// Client resolves phone numbers against the agent directory. Lookups are
// capped process-wide: at most MaxConcurrent requests are in flight and the
// next caller blocks until a slot frees. No retries at this layer.
type Client struct {
	httpClient    *resty.Client
	countryPrefix string
	sem           *semaphore.Weighted
}

func NewClient(cfg environments.DirectoryConfig, countryPrefix string) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient:    httpClient,
		countryPrefix: countryPrefix,
		sem:           semaphore.NewWeighted(cfg.MaxConcurrent),
	}
}

// ResolveParent resolves a phone number to its organizational parent
// (the dealer the agent hangs off).
func (c *Client) ResolveParent(ctx context.Context, phone string) (*domain.AgentRecord, error) {
	return c.lookup(ctx, "/sl/fise/agentParent", phone)
}

// ResolveAgent resolves the agent record for the phone number itself.
func (c *Client) ResolveAgent(ctx context.Context, phone string) (*domain.AgentRecord, error) {
	return c.lookup(ctx, "/sl/fise/allAgent", phone)
}

func (c *Client) lookup(ctx context.Context, path, phone string) (*domain.AgentRecord, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("directory: waiting for lookup slot: %w", err)
	}
	defer c.sem.Release(1)

	nro := strings.TrimPrefix(phone, c.countryPrefix)

	var result domain.AgentResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("phone", nro).
		SetResult(&result).
		Get(path)

	if err != nil {
		logger.Warnf("Directory lookup %s failed for %s: %v", path, nro, err)
		return nil, ErrNotFound
	}
	if resp.StatusCode() != 200 {
		logger.Warnf("Directory lookup %s for %s returned status %d", path, nro, resp.StatusCode())
		return nil, ErrNotFound
	}
	if len(result.Value) == 0 {
		logger.Warnf("Directory lookup %s for %s returned no records", path, nro)
		return nil, ErrNotFound
	}

	return &result.Value[0], nil
}
