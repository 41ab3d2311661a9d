package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff/v4"

	"csvflow/internal/logging"
)

var rebalancers = map[string]func() sarama.BalanceStrategy{
	"range":      sarama.NewBalanceStrategyRange,
	"roundrobin": sarama.NewBalanceStrategyRoundRobin,
	"sticky":     sarama.NewBalanceStrategySticky,
}

// SaramaDriver consumes notification documents with a sarama consumer group.
// Offsets are marked only after the handler returns and are committed on the
// checkpoint cadence.
type SaramaDriver struct {
	cfg   Config
	cl    sarama.Client
	group sarama.ConsumerGroup
	cp    *Cadence
}

func saramaConfig(c Config) (*sarama.Config, error) {
	ver, err := sarama.ParseKafkaVersion(c.Version)
	if err != nil {
		return nil, fmt.Errorf("version: %w", err)
	}
	sc := sarama.NewConfig()
	sc.Version = ver
	sc.ClientID = c.ClientID
	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.AutoCommit.Enable = false
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	if c.StartFrom == "oldest" {
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{rebalancers[c.Rebalance]()}
	sc.Net.TLS.Enable = c.TLSEn
	if c.SASLUser != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User, sc.Net.SASL.Password = c.SASLUser, c.SASLPass
	}
	return sc, sc.Validate()
}

func (d *SaramaDriver) Configure(config Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	sc, err := saramaConfig(config)
	if err != nil {
		return err
	}
	d.cfg = config
	d.cp = NewCadence(config.Checkpoint.CommitInt)

	if d.cl, err = sarama.NewClient(config.Brokers, sc); err != nil {
		return err
	}
	if d.group, err = sarama.NewConsumerGroupFromClient(config.GroupID, d.cl); err != nil {
		_ = d.cl.Close()
		return err
	}
	return nil
}

// Run joins the group until ctx ends. A failed session is retried with
// exponential backoff; a handler error ends Run.
func (d *SaramaDriver) Run(ctx context.Context, emit EmitFunc) error {
	log := logging.Component("kafka-source")
	handler := &groupHandler{cp: d.cp, emit: emit}

	go func() {
		for err := range d.group.Errors() {
			log.Warn("consumer group error", "group", d.cfg.GroupID, "err", err)
		}
	}()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.cfg.Reconnect.InitialInterval
	bo.MaxInterval = d.cfg.Reconnect.MaxInterval
	bo.MaxElapsedTime = d.cfg.Reconnect.MaxElapsed

	for {
		err := d.group.Consume(ctx, d.cfg.Topics, handler)
		switch {
		case errors.Is(err, sarama.ErrClosedConsumerGroup):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case handler.err() != nil:
			return handler.err()
		case err == nil:
			bo.Reset()
			continue
		}
		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return fmt.Errorf("consume %v: %w", d.cfg.Topics, err)
		}
		log.Warn("session ended, rejoining", "err", err, "in", wait)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (d *SaramaDriver) Close() error {
	return errors.Join(d.group.Close(), d.cl.Close())
}

type groupHandler struct {
	cp   *Cadence
	emit EmitFunc

	mu     sync.Mutex
	failed error
}

func (h *groupHandler) err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failed
}

func (*groupHandler) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup flushes whatever was marked before the rebalance.
func (*groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	sess.Commit()
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-sess.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.emit(sess.Context(), toMessage(msg)); err != nil {
				logging.Component("kafka-source").Error("handler failed, offset not marked",
					"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
				h.mu.Lock()
				if h.failed == nil {
					h.failed = err
				}
				h.mu.Unlock()
				return err
			}
			sess.MarkMessage(msg, "")
			if h.cp.Due() {
				sess.Commit()
			}
		}
	}
}

func toMessage(msg *sarama.ConsumerMessage) Message {
	m := Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		Timestamp: msg.Timestamp,
	}
	if len(msg.Headers) > 0 {
		m.Headers = make(map[string][]byte, len(msg.Headers))
		for _, h := range msg.Headers {
			m.Headers[string(h.Key)] = h.Value
		}
	}
	return m
}

func init() { Register("sarama", func() Adapter { return &SaramaDriver{} }) }
