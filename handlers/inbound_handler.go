package handlers

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/acotrina/fise-coupon-service/internal/domain"
	"github.com/acotrina/fise-coupon-service/internal/service"
	"github.com/acotrina/fise-coupon-service/pkg/response"
	"github.com/acotrina/fise-coupon-service/pkg/validator"
)

type InboundHandler struct {
	protocol *service.ProtocolService
}

func NewInboundHandler(protocol *service.ProtocolService) *InboundHandler {
	return &InboundHandler{protocol: protocol}
}

type InboundFragment struct {
	Body string `json:"body" validate:"required,max=500"`
}

type InboundRequest struct {
	Sender    string            `json:"sender" validate:"required"`
	Timestamp *time.Time        `json:"timestamp,omitempty"`
	Fragments []InboundFragment `json:"fragments" validate:"required,min=1,dive"`
}

// ReceiveMessage accepts one delivery event from the SMS gateway. The reply
// is 202: protocol work happens on the engine's own goroutine after the
// gateway has been acknowledged.
func (h *InboundHandler) ReceiveMessage(c echo.Context) error {
	var req InboundRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	event := domain.InboundEvent{
		Sender:    req.Sender,
		Timestamp: time.Now(),
	}
	if req.Timestamp != nil {
		event.Timestamp = *req.Timestamp
	}
	for _, f := range req.Fragments {
		event.Fragments = append(event.Fragments, domain.Fragment{Body: f.Body})
	}

	h.protocol.HandleEventAsync(event)

	return response.Accepted(c, "Message accepted for processing")
}
