package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/acotrina/fise-coupon-service/environments"
	"github.com/acotrina/fise-coupon-service/pkg/logger"
)

type sendRequest struct {
	To      string `json:"to"`
	Content string `json:"content"`
}

type sendResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}

// Client talks to the SMS modem gateway that actually puts messages on the
// air. Protocol replies carry no delivery-report requirement, so an accepted
// response is the end of our responsibility.
type Client struct {
	httpClient *resty.Client
	gatewayURL string
}

func NewClient(cfg environments.TransportConfig) *Client {
	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("x-gateway-auth-key", cfg.AuthKey)

	return &Client{
		httpClient: httpClient,
		gatewayURL: cfg.GatewayURL,
	}
}

// Send submits one text message for delivery. No automatic retry: the
// protocol layer treats a failed send as terminal for that event.
func (c *Client) Send(ctx context.Context, to, text string) error {
	var result sendResponse

	startTime := time.Now()
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(sendRequest{To: to, Content: text}).
		SetResult(&result).
		Post(c.gatewayURL)
	duration := time.Since(startTime)

	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	if resp.StatusCode() != http.StatusAccepted && resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode(), resp.String())
	}

	logger.Debugf("Gateway accepted message for %s in %v (id: %s)", to, duration, result.MessageID)
	return nil
}
