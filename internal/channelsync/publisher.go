// Package channelsync pushes available quantity per product to a Kafka topic that sales
// channel listers consume. The feed is one-way; nothing is read back.
package channelsync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"inventory-ledger/internal/core"
	"inventory-ledger/internal/metrics"
)

const writeTimeout = 5 * time.Second

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}
}

// Availability is one message on the feed, keyed by product id.
type Availability struct {
	ProductID    uuid.UUID       `json:"product_id"`
	AvailableQty decimal.Decimal `json:"available_qty"`
	OnHandQty    decimal.Decimal `json:"on_hand_qty"`
	AsOf         time.Time       `json:"as_of"`
}

type Publisher struct {
	writer MessageWriter
	store  core.Querier
	log    *zap.Logger
	now    func() time.Time
}

func NewPublisher(writer MessageWriter, store core.Querier, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{writer: writer, store: store, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Availability sums stock over active locations of active warehouses. With no product
// ids it covers every product that has a stock row.
func (p *Publisher) Availability(ctx context.Context, productIDs []uuid.UUID) ([]Availability, error) {
	active, err := p.activeLocations(ctx)
	if err != nil {
		return nil, err
	}
	items, err := p.store.StockItems(ctx, core.StockFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load stock snapshot: %w", err)
	}

	now := p.now()
	byProduct := make(map[uuid.UUID]*Availability)
	var order []uuid.UUID
	get := func(id uuid.UUID) *Availability {
		a, ok := byProduct[id]
		if !ok {
			a = &Availability{ProductID: id, AsOf: now}
			byProduct[id] = a
			order = append(order, id)
		}
		return a
	}
	for _, it := range items {
		a := get(it.ProductID)
		if !active[it.LocationID] {
			continue
		}
		a.AvailableQty = a.AvailableQty.Add(it.AvailableQty)
		a.OnHandQty = a.OnHandQty.Add(it.Qty)
	}
	if len(productIDs) > 0 {
		order = productIDs
	}
	out := make([]Availability, 0, len(order))
	for _, id := range order {
		out = append(out, *get(id))
	}
	return out, nil
}

// Push publishes the current availability and returns what was sent.
func (p *Publisher) Push(ctx context.Context, productIDs []uuid.UUID) ([]Availability, error) {
	avail, err := p.Availability(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	if len(avail) == 0 {
		return avail, nil
	}
	msgs := make([]kafka.Message, 0, len(avail))
	for _, a := range avail {
		value, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("failed to encode availability for %s: %w", a.ProductID, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(a.ProductID.String()), Value: value})
	}

	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := p.writer.WriteMessages(wctx, msgs...); err != nil {
		metrics.ChannelPushes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to publish availability: %w", err)
	}
	metrics.ChannelPushes.WithLabelValues("ok").Add(float64(len(msgs)))
	p.log.Info("availability pushed", zap.Int("products", len(msgs)))
	return avail, nil
}

func (p *Publisher) Close() error { return p.writer.Close() }

func (p *Publisher) activeLocations(ctx context.Context) (map[uuid.UUID]bool, error) {
	warehouses, err := p.store.ListWarehouses(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list warehouses: %w", err)
	}
	active := make(map[uuid.UUID]bool)
	for _, w := range warehouses {
		if !w.IsActive {
			continue
		}
		locs, err := p.store.ListLocations(ctx, w.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list locations of %s: %w", w.Code, err)
		}
		for _, l := range locs {
			if l.IsActive {
				active[l.ID] = true
			}
		}
	}
	return active, nil
}
