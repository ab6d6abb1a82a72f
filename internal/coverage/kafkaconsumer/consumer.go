// Package kafkaconsumer keeps the coverage index in sync with dataset
// ingestion by consuming coverage events from Kafka.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/spatialmesh/stac-federator/internal/core/observability"
	"github.com/spatialmesh/stac-federator/internal/coverage"
	"github.com/spatialmesh/stac-federator/internal/coverage/h3grid"
	"github.com/spatialmesh/stac-federator/internal/geo"
)

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	index  coverage.Index
}

func New(cfg Config, logger *slog.Logger, index coverage.Index) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{cfg: cfg, logger: logger, index: index}
}

// Start blocks until ctx is cancelled, rejoining the consumer group after
// transient errors.
func (c *Consumer) Start(ctx context.Context) error {
	if c.index == nil {
		return errors.New("kafkaconsumer: missing coverage index")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne}

	c.logger.Info("coverage event consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("coverage event consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.logger.Error("consumer error", "err", err)
				time.Sleep(2 * time.Second)
			}
		}
	}
}

// ProcessOne applies a single coverage event to the index.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()

	var ev coverage.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		observability.ObserveCoverageEvent("decode", err, time.Since(start))
		return fmt.Errorf("json decode: %w", err)
	}
	if err := ev.Validate(); err != nil {
		observability.ObserveCoverageEvent(ev.Op, err, time.Since(start))
		return fmt.Errorf("invalid event: %w", err)
	}

	cells, err := c.cellsForEvent(ev)
	if err != nil {
		observability.ObserveCoverageEvent(ev.Op, err, time.Since(start))
		return fmt.Errorf("derive cells: %w", err)
	}
	if len(cells) == 0 {
		observability.ObserveCoverageEvent(ev.Op, nil, time.Since(start))
		c.logger.Debug("coverage event produced no cells", "datasource", ev.Datasource, "op", ev.Op)
		return nil
	}

	switch ev.Op {
	case coverage.OpAdd:
		err = c.index.Add(ctx, ev.Datasource, cells)
	case coverage.OpRemove:
		err = c.index.Remove(ctx, ev.Datasource, cells)
	}
	observability.ObserveCoverageEvent(ev.Op, err, time.Since(start))
	if err != nil {
		return fmt.Errorf("apply %s: %w", ev.Op, err)
	}

	c.logger.Debug("coverage updated",
		"datasource", ev.Datasource, "op", ev.Op, "cells", len(cells))
	return nil
}

func (c *Consumer) cellsForEvent(ev coverage.Event) ([]string, error) {
	res := c.index.Resolution()
	switch {
	case len(ev.BBox) == 4:
		bb := geo.BBox{MinX: ev.BBox[0], MinY: ev.BBox[1], MaxX: ev.BBox[2], MaxY: ev.BBox[3]}
		if err := bb.Validate(); err != nil {
			return nil, fmt.Errorf("event bbox: %w", err)
		}
		return h3grid.CellsForBBox(bb, res)
	case len(ev.Geometry) > 0:
		var poly geo.Polygon
		if err := json.Unmarshal(ev.Geometry, &poly); err != nil {
			return nil, fmt.Errorf("event geometry: %w", err)
		}
		return h3grid.CellsForPolygon(poly, res)
	default:
		return nil, errors.New("unsupported event: missing bbox/geometry")
	}
}
