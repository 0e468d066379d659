package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/ecomcore/fulfillment/internal/domain"
)

// Ledger is the slice of the inventory ledger the orchestrator needs.
type Ledger interface {
	Reserve(ctx context.Context, productID string, quantity int) (int, error)
	Release(ctx context.Context, productID string, quantity int) (int, error)
}

// Catalog supplies the current unit price per product, read once at
// placement time.
type Catalog interface {
	PriceOf(ctx context.Context, productID string) (domain.Money, error)
}

// Store is the order/payment persistence surface.
type Store interface {
	CreateWithPayment(ctx context.Context, order *domain.Order, payment *domain.Payment) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetPayment(ctx context.Context, orderID string) (*domain.Payment, error)
	MarkPaid(ctx context.Context, orderID, txnID string) error
	MarkFailed(ctx context.Context, orderID string) error
	MarkRefunded(ctx context.Context, orderID string) error
}

// Gateway charges and refunds online payments. A nil gateway means online
// payments are accepted with a locally generated transaction id.
type Gateway interface {
	Charge(ctx context.Context, orderID string, amount domain.Money) (string, error)
	Refund(ctx context.Context, transactionID string) error
}

// Publisher emits lifecycle events. Nil disables publishing.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Service is the order placement orchestrator: the only writer of order,
// payment, and (through the ledger) inventory state.
type Service struct {
	store     Store
	ledger    Ledger
	catalog   Catalog
	gateway   Gateway
	publisher Publisher
	logger    *slog.Logger

	ordersPlaced      metric.Int64Counter
	placementFailures metric.Int64Counter
}

func NewService(store Store, ledger Ledger, catalog Catalog, gateway Gateway, publisher Publisher, logger *slog.Logger) (*Service, error) {
	meter := otel.Meter("orders")

	placed, err := meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders successfully placed"))
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter("orders.placement_failures",
		metric.WithDescription("Order placements that failed and were rolled back"))
	if err != nil {
		return nil, err
	}

	return &Service{
		store:             store,
		ledger:            ledger,
		catalog:           catalog,
		gateway:           gateway,
		publisher:         publisher,
		logger:            logger,
		ordersPlaced:      placed,
		placementFailures: failures,
	}, nil
}

// PlaceOrder validates the cart, reserves stock per line in ascending
// product id order, snapshots prices, and persists the order with its
// payment in one transaction. Any failure after the first reservation
// releases everything reserved so far: either the whole placement commits
// or inventory is left exactly as it was.
func (s *Service) PlaceOrder(ctx context.Context, cart domain.CartSnapshot, method domain.PaymentMethod) (*domain.Order, error) {
	if len(cart.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	if method == "" {
		method = domain.PaymentMethodCOD
	}
	if !method.Valid() {
		return nil, fmt.Errorf("unknown payment method %q", method)
	}
	for _, line := range cart.Items {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s", domain.ErrInvalidQuantity, line.ProductID)
		}
	}

	// Fixed reservation order across all callers prevents two carts sharing
	// products from repeatedly invalidating each other's reservations.
	lines := slices.Clone(cart.Items)
	slices.SortFunc(lines, func(a, b domain.CartLine) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})

	reserved := make([]domain.CartLine, 0, len(lines))
	for _, line := range lines {
		if _, err := s.ledger.Reserve(ctx, line.ProductID, line.Quantity); err != nil {
			s.rollbackReservations(ctx, reserved)
			s.placementFailures.Add(ctx, 1)
			return nil, fmt.Errorf("reserve product %s: %w", line.ProductID, err)
		}
		reserved = append(reserved, line)
	}

	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		price, err := s.catalog.PriceOf(ctx, line.ProductID)
		if err != nil {
			s.rollbackReservations(ctx, reserved)
			s.placementFailures.Add(ctx, 1)
			return nil, fmt.Errorf("price product %s: %w", line.ProductID, err)
		}
		items = append(items, domain.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: price,
		})
	}

	total, err := domain.ComputeTotal(items)
	if err != nil {
		s.rollbackReservations(ctx, reserved)
		s.placementFailures.Add(ctx, 1)
		return nil, err
	}

	order := &domain.Order{
		UserID: cart.UserID,
		Items:  items,
		Total:  total,
		Status: domain.OrderStatusCreated,
	}
	if err := order.Transition(domain.OrderStatusAwaitingPayment); err != nil {
		s.rollbackReservations(ctx, reserved)
		return nil, err
	}

	payment := &domain.Payment{
		Method: method,
		Status: domain.PaymentStatusInitiated,
		Amount: total,
	}

	if err := s.store.CreateWithPayment(ctx, order, payment); err != nil {
		s.rollbackReservations(ctx, reserved)
		s.placementFailures.Add(ctx, 1)
		return nil, fmt.Errorf("persist order: %w", err)
	}

	s.ordersPlaced.Add(ctx, 1)
	s.logger.Info("order placed", "order_id", order.ID, "user_id", order.UserID,
		"total", order.Total.String(), "method", method)

	s.publish(ctx, order.ID, domain.EventOrderPlaced, domain.OrderPlacedEvent{
		OrderID: order.ID,
		UserID:  order.UserID,
		Items:   order.Items,
		Total:   order.Total,
		Method:  method,
	})

	return order, nil
}

// MarkPaymentSuccess drives the payment to SUCCESS and the order to PAID.
// Online payments are charged through the gateway first; a declined charge
// fails the payment instead, releasing the order's stock.
func (s *Service) MarkPaymentSuccess(ctx context.Context, orderID string) (*domain.Order, error) {
	payment, err := s.store.GetPayment(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, domain.ErrOrderNotFound
	}
	if payment.Status != domain.PaymentStatusInitiated {
		return nil, fmt.Errorf("%w: payment for order %s is %s", domain.ErrInvalidTransition, orderID, payment.Status)
	}

	txnID := ""
	if payment.Method == domain.PaymentMethodOnline {
		if s.gateway != nil {
			txnID, err = s.gateway.Charge(ctx, orderID, payment.Amount)
			if err != nil {
				s.logger.Warn("gateway charge declined", "error", err, "order_id", orderID)
				if _, failErr := s.MarkPaymentFailed(ctx, orderID); failErr != nil {
					s.logger.Error("failed to record declined payment", "error", failErr, "order_id", orderID)
				}
				return nil, fmt.Errorf("charge order %s: %w", orderID, err)
			}
		} else {
			txnID = fmt.Sprintf("TXN-%d", time.Now().UnixMilli())
		}
	}

	if err := s.store.MarkPaid(ctx, orderID, txnID); err != nil {
		return nil, err
	}

	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment succeeded", "order_id", orderID, "transaction_id", txnID)
	s.publish(ctx, orderID, domain.EventPaymentSucceeded, domain.PaymentSucceededEvent{
		OrderID:       orderID,
		UserID:        order.UserID,
		TransactionID: txnID,
	})

	return order, nil
}

// MarkPaymentFailed drives the payment to FAILED, cancels the order, and
// returns every reserved line item to inventory.
func (s *Service) MarkPaymentFailed(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	if err := s.store.MarkFailed(ctx, orderID); err != nil {
		return nil, err
	}

	s.releaseItems(ctx, order.Items)

	s.logger.Info("payment failed, order cancelled", "order_id", orderID)
	s.publish(ctx, orderID, domain.EventPaymentFailed, domain.PaymentFailedEvent{
		OrderID: orderID,
		UserID:  order.UserID,
	})

	return s.store.GetByID(ctx, orderID)
}

// Refund reverses a successful payment: the gateway refund runs first for
// online payments, then payment and order move to REFUNDED together and the
// stock is returned.
func (s *Service) Refund(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	payment, err := s.store.GetPayment(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, domain.ErrOrderNotFound
	}
	if payment.Status != domain.PaymentStatusSuccess {
		return nil, fmt.Errorf("%w: payment for order %s is %s", domain.ErrInvalidTransition, orderID, payment.Status)
	}

	if payment.Method == domain.PaymentMethodOnline && s.gateway != nil && payment.TransactionID != "" {
		if err := s.gateway.Refund(ctx, payment.TransactionID); err != nil {
			return nil, fmt.Errorf("gateway refund for order %s: %w", orderID, err)
		}
	}

	if err := s.store.MarkRefunded(ctx, orderID); err != nil {
		return nil, err
	}

	s.releaseItems(ctx, order.Items)

	s.logger.Info("order refunded", "order_id", orderID)
	s.publish(ctx, orderID, domain.EventOrderRefunded, domain.OrderRefundedEvent{
		OrderID: orderID,
		UserID:  order.UserID,
		Total:   order.Total,
	})

	return s.store.GetByID(ctx, orderID)
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*domain.Order, *domain.Payment, error) {
	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order == nil {
		return nil, nil, domain.ErrOrderNotFound
	}

	payment, err := s.store.GetPayment(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, payment, nil
}

// rollbackReservations undoes partial reservations in reverse order. A
// release that fails here is logged, not propagated: the placement failure
// already in flight is the caller-visible error.
func (s *Service) rollbackReservations(ctx context.Context, reserved []domain.CartLine) {
	for i := len(reserved) - 1; i >= 0; i-- {
		line := reserved[i]
		if _, err := s.ledger.Release(ctx, line.ProductID, line.Quantity); err != nil {
			s.logger.Error("failed to release reservation during rollback",
				"error", err, "product_id", line.ProductID, "quantity", line.Quantity)
		}
	}
}

func (s *Service) releaseItems(ctx context.Context, items []domain.OrderItem) {
	for _, item := range items {
		if _, err := s.ledger.Release(ctx, item.ProductID, item.Quantity); err != nil {
			s.logger.Error("failed to release stock",
				"error", err, "product_id", item.ProductID, "quantity", item.Quantity)
		}
	}
}

func (s *Service) publish(ctx context.Context, orderID, eventType string, payload any) {
	if s.publisher == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal event", "error", err, "type", eventType)
		return
	}

	envelope := domain.EventEnvelope{
		EventID:    uuid.New().String(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    data,
	}

	if err := s.publisher.Publish(ctx, orderID, envelope); err != nil {
		s.logger.Error("failed to publish event", "error", err, "type", eventType, "order_id", orderID)
	}
}
