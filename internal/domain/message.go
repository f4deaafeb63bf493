package domain

import "time"

// MessageKind classifies an inbound body after parsing.
type MessageKind string

const (
	KindCouponRequest           MessageKind = "coupon_request"
	KindEntityValidResponse     MessageKind = "entity_valid_response"
	KindEntityErrorResponse     MessageKind = "entity_error_response"
	KindEntityProcessedResponse MessageKind = "entity_processed_response"
	KindUnrecognized            MessageKind = "unrecognized"
)

// SenderRole is what the role registry knows about a sender before parsing.
type SenderRole string

const (
	RoleEntity  SenderRole = "entity"
	RoleDriver  SenderRole = "driver"
	RoleUnknown SenderRole = "unknown"
)

// ParsedMessage is the transient result of classifying one inbound body.
// Only the fields relevant to the detected kind are populated; Raw always
// carries the original text.
type ParsedMessage struct {
	Kind        MessageKind
	Cupon       string
	DNI         string
	SN          string
	Monto       float64
	HasMonto    bool
	Descripcion string
	Fecha       string
	Hora        string
	Raw         string
}

// Fragment is one transport-level piece of an inbound message. Fragments of
// one logical message arrive ordered and are concatenated before parsing.
type Fragment struct {
	Body string `json:"body" validate:"required"`
}

// InboundEvent is one delivery event from the SMS transport: a sender, a
// timestamp and one or more ordered body fragments.
type InboundEvent struct {
	Sender    string     `json:"sender"`
	Timestamp time.Time  `json:"timestamp"`
	Fragments []Fragment `json:"fragments"`
}

// Body reassembles the logical message text.
func (e InboundEvent) Body() string {
	if len(e.Fragments) == 1 {
		return e.Fragments[0].Body
	}
	var out string
	for _, f := range e.Fragments {
		out += f.Body
	}
	return out
}

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// HistoryEntry is one durably stored message body, inbound or outbound.
type HistoryEntry struct {
	ID        int64     `db:"id" json:"id"`
	Phone     string    `db:"phone" json:"phone"`
	Body      string    `db:"body" json:"body"`
	Direction Direction `db:"direction" json:"direction"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
