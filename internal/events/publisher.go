package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Emmannue01/trend-caps/internal/order"
)

const OrderPlacedQueue = "order.placed"

const EventTypeOrderPlaced = "OrderPlaced"

type OrderItem struct {
	ProductID string  `json:"productId"`
	Size      string  `json:"size,omitempty"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// OrderPlaced is the fulfillment notification emitted after a checkout
// commits.
type OrderPlaced struct {
	EventType string      `json:"eventType"`
	OrderID   string      `json:"orderId"`
	AccountID string      `json:"accountId"`
	Items     []OrderItem `json:"items"`
	Total     float64     `json:"totalAmount"`
	Timestamp time.Time   `json:"timestamp"`
}

type Publisher struct {
	ch *amqp.Channel
}

func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// Declare the queue so publish never fails due to missing infra
	if _, err := ch.QueueDeclare(OrderPlacedQueue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare %s: %w", OrderPlacedQueue, err)
	}

	return &Publisher{ch: ch}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func newOrderPlaced(o *order.Order, now time.Time) OrderPlaced {
	ev := OrderPlaced{
		EventType: EventTypeOrderPlaced,
		OrderID:   o.ID,
		AccountID: o.AccountID,
		Total:     o.Total,
		Timestamp: now,
	}
	for _, it := range o.Items {
		ev.Items = append(ev.Items, OrderItem{
			ProductID: it.ProductID,
			Size:      it.Size,
			Quantity:  it.Quantity,
			Price:     it.UnitPrice,
		})
	}
	return ev
}

func (p *Publisher) PublishOrderPlaced(ctx context.Context, o *order.Order) error {
	body, err := json.Marshal(newOrderPlaced(o, time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("marshal OrderPlaced: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		"",               // default exchange
		OrderPlacedQueue, // queue name as routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// MustDial connects to RabbitMQ or panics; startup has nothing useful to
// do without the broker when events are enabled.
func MustDial(url string) *amqp.Connection {
	conn, err := amqp.Dial(url)
	if err != nil {
		panic(fmt.Sprintf("connect rabbitmq: %v", err))
	}
	return conn
}
