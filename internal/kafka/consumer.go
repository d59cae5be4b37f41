package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gridops/meterpower/internal/config"
	"github.com/gridops/meterpower/internal/models"

	"github.com/Shopify/sarama"
)

// MessageProcessor is a function that processes batches of meter readings
type MessageProcessor func([]models.MeterReading) error

// Consumer represents a Kafka consumer
type Consumer struct {
	id         string
	config     config.KafkaConfig
	consumer   sarama.ConsumerGroup
	processor  MessageProcessor
	logger     *slog.Logger
	msgBuffer  []models.MeterReading
	bufferLock sync.Mutex
	lastFlush  time.Time
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(id string, config config.KafkaConfig, processor MessageProcessor, logger *slog.Logger) (*Consumer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin

	// Optimize for throughput
	saramaConfig.Consumer.Fetch.Min = 1
	saramaConfig.Consumer.Fetch.Default = 1024 * 1024 // 1MB
	saramaConfig.Consumer.MaxWaitTime = 250 * time.Millisecond

	client, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		id:        id,
		config:    config,
		consumer:  client,
		processor: processor,
		logger:    logger.With("consumer", id),
		msgBuffer: make([]models.MeterReading, 0, config.BatchSize),
		lastFlush: time.Now(),
	}, nil
}

// Consume starts consuming messages from Kafka and blocks until the
// context is cancelled or a consumer error occurs.
func (c *Consumer) Consume(ctx context.Context) error {
	errorChan := make(chan error)
	go func() {
		for err := range c.consumer.Errors() {
			c.logger.Error("consumer error", "error", err)
			select {
			case errorChan <- err:
			case <-ctx.Done():
				return
			}
		}
	}()

	handler := &consumerGroupHandler{
		consumer: c,
		ctx:      ctx,
	}

	// Flush partially filled batches so a slow topic still delivers.
	flushTicker := time.NewTicker(c.config.BatchTimeout)
	defer flushTicker.Stop()

	go func() {
		for {
			select {
			case <-flushTicker.C:
				c.flushIfStale()
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			c.flushBuffer()
			return nil
		case err := <-errorChan:
			return err
		default:
			if err := c.consumer.Consume(ctx, []string{c.config.Topic}, handler); err != nil {
				if err != context.Canceled {
					return err
				}
				return nil
			}
		}
	}
}

// Close leaves the consumer group.
func (c *Consumer) Close() error {
	return c.consumer.Close()
}

// addMessage adds a reading to the buffer and flushes if needed
func (c *Consumer) addMessage(reading models.MeterReading) {
	c.bufferLock.Lock()
	defer c.bufferLock.Unlock()

	c.msgBuffer = append(c.msgBuffer, reading)

	if len(c.msgBuffer) >= c.config.BatchSize {
		c.flushBufferLocked()
	}
}

// flushBuffer flushes the message buffer
func (c *Consumer) flushBuffer() {
	c.bufferLock.Lock()
	defer c.bufferLock.Unlock()

	c.flushBufferLocked()
}

// flushIfStale flushes on the ticker path only when no flush ran within the
// batch timeout, so a size-triggered flush resets the clock.
func (c *Consumer) flushIfStale() {
	c.bufferLock.Lock()
	defer c.bufferLock.Unlock()

	if time.Since(c.lastFlush) < c.config.BatchTimeout {
		return
	}
	c.flushBufferLocked()
}

// flushBufferLocked hands the buffered readings to the processor while
// holding the lock. The processor only enqueues, so the handoff is cheap
// and batches stay in consumption order.
func (c *Consumer) flushBufferLocked() {
	if len(c.msgBuffer) == 0 {
		return
	}

	messages := make([]models.MeterReading, len(c.msgBuffer))
	copy(messages, c.msgBuffer)

	c.msgBuffer = c.msgBuffer[:0]
	c.lastFlush = time.Now()

	if err := c.processor(messages); err != nil {
		c.logger.Error("processing batch failed", "count", len(messages), "error", err)
	}
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ctx      context.Context
}

func (h *consumerGroupHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerGroupHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if h.ctx.Err() != nil {
			return h.ctx.Err()
		}

		var reading models.MeterReading
		if err := json.Unmarshal(message.Value, &reading); err != nil {
			// Undecodable payloads still count: a reading with nil
			// fields is processed as malformed downstream.
			h.consumer.logger.Warn("unmarshalling message failed", "error", err)
			reading = models.MeterReading{Timestamp: message.Timestamp}
		}

		h.consumer.addMessage(reading)
		session.MarkMessage(message, "")
	}
	return nil
}
