package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"
	"github.com/LukeAtkinz/dashdice-sub004/internal/config"
	"github.com/LukeAtkinz/dashdice-sub004/internal/domain"
)

// Event types carried on the matchmaking topic
const (
	EventTypeJoin  = "join"
	EventTypeLeave = "leave"
)

// SearchEvent is the wire format for queue traffic arriving over
// Kafka. Join events carry the full request; leave events only need
// the player and queue identifiers.
type SearchEvent struct {
	Type string `json:"type"`
	domain.JoinRequest
}

// Matchmaker applies search events to the waiting pools
type Matchmaker interface {
	Join(req domain.JoinRequest) (string, error)
	Leave(playerID, gameMode string, sessionType domain.SessionType) bool
}

// Consumer consumes matchmaking search events from Kafka
type Consumer struct {
	config        *config.KafkaConfig
	engine        Matchmaker
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, engine Matchmaker, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		engine:        engine,
		logger:        logger,
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan bool),
	}, nil
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				ready:    c.ready,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if err == sarama.ErrClosedConsumerGroup {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			// Check if context was cancelled
			if c.ctx.Err() != nil {
				return
			}

			c.ready = make(chan bool)
		}
	}()

	// Wait until consumer is ready
	<-c.ready
	c.logger.Info("Kafka consumer ready")

	// Handle errors in separate goroutine
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a topic partition. Events are
// applied one at a time: every engine operation is a short in-memory
// critical section, so there is nothing to gain from batching here.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil

		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			var event SearchEvent
			if err := json.Unmarshal(message.Value, &event); err != nil {
				h.consumer.logger.Warn("failed to unmarshal event",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				session.MarkMessage(message, "")
				continue
			}

			h.consumer.handleEvent(&event)
			session.MarkMessage(message, "")
		}
	}
}

// handleEvent applies one search event to the engine
func (c *Consumer) handleEvent(event *SearchEvent) {
	switch event.Type {
	case EventTypeJoin:
		if _, err := c.engine.Join(event.JoinRequest); err != nil {
			c.logger.Warn("rejected join event",
				"player_id", event.PlayerID,
				"game_mode", event.GameMode,
				"error", err,
			)
		}

	case EventTypeLeave:
		c.engine.Leave(event.PlayerID, event.GameMode, event.SessionType)

	default:
		c.logger.Warn("unknown event type",
			"type", event.Type,
			"player_id", event.PlayerID,
		)
	}
}
