package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acotrina/fise-coupon-service/environments"
	"github.com/acotrina/fise-coupon-service/internal/domain"
	"github.com/acotrina/fise-coupon-service/internal/parser"
	"github.com/acotrina/fise-coupon-service/pkg/logger"
)

// Consumer-side interfaces over the ledger and the external collaborators,
// matching the repository and client method sets we actually use.
type transactionLedger interface {
	Upsert(ctx context.Context, tx *domain.Transaction) (int64, error)
	UpdateStatus(ctx context.Context, cupon, dni string, estado domain.TxStatus, monto *float64, respuesta *string) (int64, error)
	MarkUsed(ctx context.Context, id int64) error
	FindPending(ctx context.Context, cupon, dni string) (*domain.Transaction, error)
	FindPendingByCoupon(ctx context.Context, cupon string) (*domain.Transaction, error)
	FindPendingByEntity(ctx context.Context, entitySuffix string) (*domain.Transaction, error)
	FindLatestByCoupon(ctx context.Context, cupon string) (*domain.Transaction, error)
	KnownEntity(ctx context.Context, phoneSuffix string) (bool, error)
	KnownDriver(ctx context.Context, phoneSuffix string) (bool, error)
}

type directoryClient interface {
	ResolveParent(ctx context.Context, phone string) (*domain.AgentRecord, error)
}

type backendClient interface {
	Submit(ctx context.Context, record *domain.SyncRecord) bool
}

type dedupCache interface {
	ShouldProcess(sender, body string) bool
	MarkProcessed(sender, body string)
}

type replySender interface {
	Send(ctx context.Context, to, text string) error
	RecordInbound(ctx context.Context, from, body string)
}

// ProtocolService is the state machine driving the coupon-validation
// protocol. Each inbound delivery event is handled as its own goroutine;
// the ledger and the dedup cache are the only state shared between events.
type ProtocolService struct {
	ledger    transactionLedger
	directory directoryClient
	backend   backendClient
	dedup     dedupCache
	messenger replySender
	config    environments.ProtocolConfig

	wg sync.WaitGroup

	nowFunc func() time.Time
}

func NewProtocolService(
	ledger transactionLedger,
	directory directoryClient,
	backend backendClient,
	dedup dedupCache,
	messenger replySender,
	config environments.ProtocolConfig,
) *ProtocolService {
	return &ProtocolService{
		ledger:    ledger,
		directory: directory,
		backend:   backend,
		dedup:     dedup,
		messenger: messenger,
		config:    config,
		nowFunc:   time.Now,
	}
}

// HandleEventAsync runs one delivery event in its own goroutine under the
// per-event time budget. The goroutine is owned by the service: Shutdown
// waits for every in-flight event.
func (s *ProtocolService) HandleEventAsync(event domain.InboundEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		eventID := uuid.NewString()
		start := time.Now()

		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[%s] Panic processing event from %s: %v", eventID, event.Sender, r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.config.EventBudget)
		defer cancel()

		if err := s.HandleEvent(ctx, event); err != nil {
			logger.Warnf("[%s] Event from %s not completed: %v", eventID, event.Sender, err)
		}

		logger.Debugf("[%s] Event from %s finished in %v", eventID, event.Sender, time.Since(start))
	}()
}

// Shutdown waits for in-flight events, up to the context deadline. Events
// still running past the deadline keep their own 30s budget; their writes
// stand.
func (s *ProtocolService) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("protocol: shutdown deadline exceeded: %w", ctx.Err())
	}
}

// HandleEvent processes one reassembled delivery event synchronously:
// dedup, history, classification, dispatch. A nil return means the event is
// settled and a redelivery should be suppressed; an error leaves the dedup
// mark unset so the transport's at-least-once redelivery can retry it.
func (s *ProtocolService) HandleEvent(ctx context.Context, event domain.InboundEvent) error {
	sender := event.Sender
	body := event.Body()

	if sender == "" || body == "" {
		return fmt.Errorf("protocol: event missing sender or body")
	}

	if !s.dedup.ShouldProcess(sender, body) {
		logger.Debugf("Duplicate message from %s ignored", sender)
		return nil
	}

	s.messenger.RecordInbound(ctx, sender, body)

	role := s.senderRole(ctx, sender)
	msg := parser.Parse(body, role)

	logger.Infof("Message from %s classified as %s (role %s)", sender, msg.Kind, role)

	var err error
	switch msg.Kind {
	case domain.KindCouponRequest:
		err = s.handleCouponRequest(ctx, event, msg)
	case domain.KindEntityValidResponse:
		err = s.handleValidResponse(ctx, event, msg)
	case domain.KindEntityErrorResponse:
		err = s.handleErrorResponse(ctx, event, msg)
	case domain.KindEntityProcessedResponse:
		err = s.handleProcessedNotice(ctx, msg)
	case domain.KindUnrecognized:
		// History only; nothing to do at the protocol level.
	}

	if err != nil {
		return err
	}

	s.dedup.MarkProcessed(sender, body)
	return nil
}

// handleCouponRequest relays a driver's coupon to the validating entity via
// the dealer hierarchy and opens a PENDING ledger row.
func (s *ProtocolService) handleCouponRequest(ctx context.Context, event domain.InboundEvent, msg domain.ParsedMessage) error {
	record, err := s.directory.ResolveParent(ctx, event.Sender)
	if err != nil {
		return fmt.Errorf("coupon request from %s: dealer lookup: %w", event.Sender, err)
	}

	dealerPhone := strings.TrimSpace(record.DealerPhone)
	if dealerPhone == "" {
		return fmt.Errorf("coupon request from %s: dealer %s has no phone", event.Sender, record.Code)
	}

	request := fmt.Sprintf("FISE AH02 %s %s", msg.DNI, msg.Cupon)
	if err := s.messenger.Send(ctx, dealerPhone, request); err != nil {
		return fmt.Errorf("coupon request from %s: %w", event.Sender, err)
	}

	tx := &domain.Transaction{
		DriverPhone: event.Sender,
		Entidad:     dealerPhone,
		AgentePhone: event.Sender,
		Cupon:       msg.Cupon,
		DNI:         msg.DNI,
		Fecha:       s.nowFunc(),
		Estado:      domain.StatusPending,
	}
	if msg.SN != "" {
		tx.SN = &msg.SN
	}

	if _, err := s.ledger.Upsert(ctx, tx); err != nil {
		// The request is already on the wire; losing the row is worth a
		// loud log but not a redelivery that would resend the SMS.
		logger.Errorf("Failed to save PENDING transaction for coupon %s: %v", msg.Cupon, err)
		return nil
	}

	logger.Infof("Coupon %s (dni %s) relayed to %s, transaction PENDING", msg.Cupon, msg.DNI, dealerPhone)
	return nil
}

// handleValidResponse settles a PENDING row as DELIVERED, syncs the record
// to the backend and confirms to the driver.
func (s *ProtocolService) handleValidResponse(ctx context.Context, event domain.InboundEvent, msg domain.ParsedMessage) error {
	tx, err := s.ledger.FindPending(ctx, msg.Cupon, msg.DNI)
	if err != nil {
		return fmt.Errorf("valid response for coupon %s: %w", msg.Cupon, err)
	}
	if tx == nil {
		// Exact identity missed; the by-coupon fallback can pick up a row
		// whose dni was mangled in transit. It can also pick up another
		// driver's row when coupon values collide. Accepted limitation.
		tx, err = s.ledger.FindPendingByCoupon(ctx, msg.Cupon)
		if err != nil {
			return fmt.Errorf("valid response for coupon %s: %w", msg.Cupon, err)
		}
	}
	if tx == nil {
		logger.Warnf("No PENDING transaction for coupon %s (dni %s); response dropped", msg.Cupon, msg.DNI)
		return nil
	}

	var monto *float64
	if msg.HasMonto {
		monto = &msg.Monto
	}

	// Sync first, but never let the backend block the driver's reply or
	// the ledger update: a refused sync is a log line, not a rollback.
	record := &domain.SyncRecord{
		FiseNumero:  s.phoneSuffix(event.Sender),
		UsrNumero:   tx.AgentePhone,
		UsrDNI:      tx.DNI,
		FiseCodigo:  tx.Cupon,
		Importe:     monto,
		UsrChofer:   tx.DriverPhone,
		Descripcion: msg.Descripcion,
		FiseSN:      tx.SN,
	}
	if !s.backend.Submit(ctx, record) {
		logger.Errorf("Backend sync failed for coupon %s; ledger update proceeds", tx.Cupon)
	}

	respuesta := msg.Descripcion
	rows, err := s.ledger.UpdateStatus(ctx, tx.Cupon, tx.DNI, domain.StatusDelivered, monto, &respuesta)
	if err != nil {
		return fmt.Errorf("valid response for coupon %s: %w", msg.Cupon, err)
	}
	if rows == 0 {
		logger.Warnf("Transaction for coupon %s already settled; ledger untouched", tx.Cupon)
	}

	if strings.TrimSpace(tx.DriverPhone) == "" {
		logger.Warnf("Transaction for coupon %s has no driver phone; confirmation not sent", tx.Cupon)
		return nil
	}

	confirmation := fmt.Sprintf("Cupón %s validado correctamente.", tx.Cupon)
	if msg.HasMonto {
		confirmation = fmt.Sprintf("Cupón %s validado. Importe por S/ %s",
			tx.Cupon, strconv.FormatFloat(msg.Monto, 'f', -1, 64))
	}

	if err := s.messenger.Send(ctx, tx.DriverPhone, confirmation); err != nil {
		// Ledger already says DELIVERED; the driver may not know. Logged
		// inconsistency, no automatic retry.
		logger.Errorf("Failed to confirm coupon %s to driver %s: %v", tx.Cupon, tx.DriverPhone, err)
	}
	return nil
}

// handleErrorResponse marks the entity's newest PENDING row FAILED and
// relays the entity's text to the driver verbatim.
func (s *ProtocolService) handleErrorResponse(ctx context.Context, event domain.InboundEvent, msg domain.ParsedMessage) error {
	entitySuffix := s.phoneSuffix(event.Sender)

	tx, err := s.ledger.FindPendingByEntity(ctx, entitySuffix)
	if err != nil {
		return fmt.Errorf("error response from %s: %w", event.Sender, err)
	}
	if tx == nil {
		logger.Warnf("ERRADO from %s matches no PENDING transaction; dropped", event.Sender)
		return nil
	}

	raw := msg.Raw
	if _, err := s.ledger.UpdateStatus(ctx, tx.Cupon, tx.DNI, domain.StatusFailed, nil, &raw); err != nil {
		return fmt.Errorf("error response from %s: %w", event.Sender, err)
	}

	if err := s.messenger.Send(ctx, tx.DriverPhone, msg.Raw); err != nil {
		logger.Errorf("Failed to relay ERRADO for coupon %s to driver %s: %v", tx.Cupon, tx.DriverPhone, err)
	}

	logger.Infof("Coupon %s (dni %s) marked FAILED after entity rejection", tx.Cupon, tx.DNI)
	return nil
}

// handleProcessedNotice tells the driver the coupon was already validated.
// The first notice after DELIVERED promotes the row to USED; after that the
// notice only re-notifies.
func (s *ProtocolService) handleProcessedNotice(ctx context.Context, msg domain.ParsedMessage) error {
	tx, err := s.ledger.FindLatestByCoupon(ctx, msg.Cupon)
	if err != nil {
		return fmt.Errorf("processed notice for coupon %s: %w", msg.Cupon, err)
	}
	if tx == nil {
		logger.Warnf("Processed notice for unknown coupon %s; dropped", msg.Cupon)
		return nil
	}
	if strings.TrimSpace(tx.DriverPhone) == "" {
		logger.Warnf("Transaction for coupon %s has no driver phone; notice not relayed", tx.Cupon)
		return nil
	}

	notice := fmt.Sprintf("Cupón %s ya fue validado anteriormente", msg.Cupon)
	if err := s.messenger.Send(ctx, tx.DriverPhone, notice); err != nil {
		logger.Errorf("Failed to notify driver %s about coupon %s: %v", tx.DriverPhone, tx.Cupon, err)
	}

	if tx.Estado == domain.StatusDelivered {
		if err := s.ledger.MarkUsed(ctx, tx.ID); err != nil {
			logger.Errorf("Failed to mark coupon %s USED: %v", tx.Cupon, err)
		}
	}
	return nil
}

// senderRole consults the configured entity numbers and the ledger. Content
// heuristics in the parser only apply when this comes back unknown.
func (s *ProtocolService) senderRole(ctx context.Context, sender string) domain.SenderRole {
	suffix := s.phoneSuffix(sender)
	if suffix == "" {
		return domain.RoleUnknown
	}

	for _, number := range s.config.EntityNumbers {
		known := digitsOnly(number)
		if strings.HasSuffix(known, suffix) || strings.HasSuffix(suffix, known) {
			return domain.RoleEntity
		}
	}

	if known, err := s.ledger.KnownEntity(ctx, suffix); err == nil && known {
		return domain.RoleEntity
	}
	if known, err := s.ledger.KnownDriver(ctx, suffix); err == nil && known {
		return domain.RoleDriver
	}
	return domain.RoleUnknown
}

// phoneSuffix strips the configured country prefix and every non-digit.
// Only the one configured prefix is handled; see README, known limitations.
func (s *ProtocolService) phoneSuffix(phone string) string {
	return digitsOnly(strings.TrimPrefix(phone, s.config.CountryPrefix))
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
