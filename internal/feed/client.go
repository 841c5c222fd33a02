package feed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrBrokerRequired = errors.New("feed: broker address required")
	ErrTopicRequired  = errors.New("feed: topic required")
	ErrUnreachable    = errors.New("feed: broker unreachable")
)

// Handler receives the raw textual payload of one feed notification.
// Delivery is serialized: a handler invocation completes before the next
// notification is dispatched.
type Handler func(payload string)

// ClientConfig configures the broker subscription.
type ClientConfig struct {
	BrokerURL          string
	Topic              string
	ClientID           string
	ConnectTimeout     time.Duration
	MaxConnectAttempts int
	Backoff            BackoffConfig

	// OnConnectionLost is invoked whenever an established connection
	// drops. Reconnect runs underneath; the drop itself is never silent.
	OnConnectionLost func(err error)
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ConnectTimeout:     5 * time.Second,
		MaxConnectAttempts: 10,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     30 * time.Second,
			Jitter:       true,
		},
	}
}

// Client holds one long-lived subscription to the status topic. The
// subscription is re-established on every (re)connect, so delivery
// resumes without resumed session state; the client id is random per
// session.
type Client struct {
	cfg     ClientConfig
	conn    mqtt.Client
	handler Handler
	rng     *rand.Rand
	log     zerolog.Logger
}

func NewClient(cfg ClientConfig, handler Handler, logger zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BrokerURL) == "" {
		return nil, ErrBrokerRequired
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, ErrTopicRequired
	}
	if handler == nil {
		return nil, errors.New("feed: handler required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultClientConfig().ConnectTimeout
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		cfg.ClientID = SessionClientID()
	}

	c := &Client{
		cfg:     cfg,
		handler: handler,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		log:     logger,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(cfg.Backoff.MaxDelay).
		SetOrderMatters(true).
		SetOnConnectHandler(c.subscribe).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			c.log.Warn().Err(err).Str("broker", cfg.BrokerURL).Msg("feed connection lost")
			if c.cfg.OnConnectionLost != nil {
				c.cfg.OnConnectionLost(err)
			}
		})
	c.conn = mqtt.NewClient(opts)
	return c, nil
}

// SessionClientID generates the per-session random client identifier.
func SessionClientID() string {
	return fmt.Sprintf("lamp_%s", uuid.NewString()[:8])
}

func (c *Client) ClientID() string {
	return c.cfg.ClientID
}

// Connect dials the broker, retrying with backoff up to the configured
// attempt cap. The topic subscription happens in the on-connect hook, so
// it is re-established after every reconnect as well.
func (c *Client) Connect(ctx context.Context) error {
	var attempt int
	for {
		attempt++
		token := c.conn.Connect()
		if ok := token.WaitTimeout(c.cfg.ConnectTimeout); ok && token.Error() == nil {
			return nil
		}
		err := token.Error()
		if err == nil {
			err = fmt.Errorf("connect timeout after %s", c.cfg.ConnectTimeout)
		}
		c.log.Warn().
			Int("attempt", attempt).
			Str("broker", c.cfg.BrokerURL).
			Err(err).
			Msg("feed connect failed")
		if !c.shouldRetry(attempt) {
			return fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
		if err := c.sleepBackoff(ctx, attempt); err != nil {
			return err
		}
	}
}

func (c *Client) subscribe(conn mqtt.Client) {
	token := conn.Subscribe(c.cfg.Topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		c.handler(string(msg.Payload()))
	})
	token.Wait()
	if err := token.Error(); err != nil {
		c.log.Error().Err(err).Str("topic", c.cfg.Topic).Msg("feed subscribe failed")
		if c.cfg.OnConnectionLost != nil {
			c.cfg.OnConnectionLost(err)
		}
		return
	}
	c.log.Info().
		Str("topic", c.cfg.Topic).
		Str("client_id", c.cfg.ClientID).
		Msg("feed subscribed")
}

func (c *Client) shouldRetry(attempt int) bool {
	if c.cfg.MaxConnectAttempts <= 0 {
		return true
	}
	return attempt < c.cfg.MaxConnectAttempts
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	delay := NextBackoffDelay(c.cfg.Backoff, attempt, c.rng)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Connected reports whether the broker connection is currently up.
func (c *Client) Connected() bool {
	return c.conn != nil && c.conn.IsConnectionOpen()
}

// Close tears down the subscription and connection.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	if c.conn.IsConnectionOpen() {
		token := c.conn.Unsubscribe(c.cfg.Topic)
		token.WaitTimeout(time.Second)
	}
	c.conn.Disconnect(250)
}

// StatusFromPayload decodes a feed token. The contract is exact equality
// on "on": any other token, including case variants, means OFF.
func StatusFromPayload(payload string) bool {
	return payload == "on"
}
