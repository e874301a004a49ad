package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	"github.com/agora-social/agora/pkg/events"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type binding struct {
	queue    string
	key      string
	exchange string
}

type fakeChannel struct {
	mu         sync.Mutex
	name       string
	exchanges  []string
	queues     map[string]amqp.Table
	bindings   []binding
	prefetch   int
	published  []published
	publishErr error
	deliveries chan amqp.Delivery
	closeOnce  sync.Once
	closed     bool
}

func newFakeChannel(name string) *fakeChannel {
	return &fakeChannel{
		name:       name,
		queues:     make(map[string]amqp.Table),
		deliveries: make(chan amqp.Delivery, 8),
	}
}

func (c *fakeChannel) ExchangeDeclare(name, _ string, _, _, _, _ bool, _ amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exchanges = append(c.exchanges, name)
	return nil
}

func (c *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, args amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name == "" {
		name = "amq.gen-" + c.name
	}
	c.queues[name] = args
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings = append(c.bindings, binding{queue: name, key: key, exchange: exchange})
	return nil
}

func (c *fakeChannel) Qos(prefetchCount, _ int, _ bool) error {
	c.prefetch = prefetchCount
	return nil
}

func (c *fakeChannel) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	return c.deliveries, nil
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.deliveries)
	})
	return nil
}

func (c *fakeChannel) lastPublished() published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.published[len(c.published)-1]
}

type fakeConnection struct {
	mu       sync.Mutex
	channels []*fakeChannel
	closed   bool
}

func (c *fakeConnection) Channel() (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := newFakeChannel(fmt.Sprint(len(c.channels)))
	c.channels = append(c.channels, ch)
	return ch, nil
}

func (c *fakeConnection) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	return receiver
}

func (c *fakeConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConnection) channel(i int) *fakeChannel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels[i]
}

// outcome records how a delivery was settled.
type outcome struct {
	ack     bool
	requeue bool
}

type fakeAcknowledger struct {
	outcomes chan outcome
}

func (a *fakeAcknowledger) Ack(uint64, bool) error {
	a.outcomes <- outcome{ack: true}
	return nil
}

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.outcomes <- outcome{requeue: requeue}
	return nil
}

func (a *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	a.outcomes <- outcome{requeue: requeue}
	return nil
}

type BusTestSuite struct {
	suite.Suite
	ctx  context.Context
	conn *fakeConnection
	bus  *Bus
	ack  *fakeAcknowledger
}

func (suite *BusTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.conn = &fakeConnection{}
	suite.ack = &fakeAcknowledger{outcomes: make(chan outcome, 8)}

	bus, err := New(suite.conn, Options{
		Exchange:     "events",
		ExchangeType: amqp.ExchangeTopic,
		Prefetch:     4,
		DeadLetter:   true,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}, zaptest.NewLogger(suite.T()))
	suite.Require().NoError(err)
	suite.bus = bus
}

func (suite *BusTestSuite) TearDownTest() {
	suite.Require().NoError(suite.bus.Disconnect(suite.ctx))
}

// subscribe registers h and returns the subscription channel.
func (suite *BusTestSuite) subscribe(h events.Handler) *fakeChannel {
	suite.Require().NoError(suite.bus.Subscribe(suite.ctx, "post.created", h))
	return suite.conn.channel(1)
}

func (suite *BusTestSuite) deliver(ch *fakeChannel, headers amqp.Table) {
	ch.deliveries <- amqp.Delivery{
		Acknowledger: suite.ack,
		DeliveryTag:  1,
		Headers:      headers,
		ContentType:  "application/json",
		MessageId:    "evt-1",
		Type:         "post.created",
		Body:         []byte(`{"eventName":"post.created"}`),
	}
}

func (suite *BusTestSuite) settled() outcome {
	select {
	case o := <-suite.ack.outcomes:
		return o
	case <-time.After(2 * time.Second):
		suite.FailNow("delivery was never settled")
		return outcome{}
	}
}

func (suite *BusTestSuite) TestNewDeclaresTopology() {
	ch := suite.conn.channel(0)

	suite.Equal([]string{"events", "events.dlx"}, ch.exchanges)
	suite.Contains(ch.queues, "events.dead-letter")
	suite.Equal([]binding{{queue: "events.dead-letter", key: "#", exchange: "events.dlx"}}, ch.bindings)
}

func (suite *BusTestSuite) TestPublishIsPersistentAndRoutedByName() {
	// Arrange
	event, err := events.New("post.created", map[string]string{"postId": "p1"})
	suite.Require().NoError(err)

	// Act
	suite.Require().NoError(suite.bus.Publish(suite.ctx, event))

	// Assert
	got := suite.conn.channel(0).lastPublished()
	suite.Equal("events", got.exchange)
	suite.Equal("post.created", got.key)
	suite.Equal(amqp.Persistent, got.msg.DeliveryMode)
	suite.Equal(event.ID, got.msg.MessageId)
	suite.Equal("post.created", got.msg.Type)
	suite.Equal("application/json", got.msg.ContentType)
	suite.Equal(event.OccurredAt, got.msg.Timestamp)
}

func (suite *BusTestSuite) TestSubscribeBindsExclusiveQueueWithDeadLetter() {
	// Act
	ch := suite.subscribe(func(context.Context, []byte) error { return nil })

	// Assert
	suite.Equal(4, ch.prefetch)
	suite.Equal(amqp.Table{"x-dead-letter-exchange": "events.dlx"}, ch.queues["amq.gen-1"])
	suite.Equal([]binding{{queue: "amq.gen-1", key: "post.created", exchange: "events"}}, ch.bindings)
}

func (suite *BusTestSuite) TestSuccessfulDeliveryIsAcked() {
	// Arrange
	received := make(chan []byte, 1)
	ch := suite.subscribe(func(_ context.Context, raw []byte) error {
		received <- raw
		return nil
	})

	// Act
	suite.deliver(ch, nil)

	// Assert
	suite.Equal(outcome{ack: true}, suite.settled())
	suite.JSONEq(`{"eventName":"post.created"}`, string(<-received))
}

func (suite *BusTestSuite) TestFailureIsRepublishedWithRetryCount() {
	// Arrange
	ch := suite.subscribe(func(context.Context, []byte) error { return errors.New("db down") })

	// Act
	suite.deliver(ch, amqp.Table{RetryHeader: int32(1)})

	// Assert
	suite.Equal(outcome{ack: true}, suite.settled())
	retry := ch.lastPublished()
	suite.Equal("", retry.exchange)
	suite.Equal("amq.gen-1", retry.key)
	suite.Equal(int32(2), retry.msg.Headers[RetryHeader])
	suite.Equal("evt-1", retry.msg.MessageId)
	suite.Equal(amqp.Persistent, retry.msg.DeliveryMode)
}

func (suite *BusTestSuite) TestExhaustedRetriesAreDeadLettered() {
	// Arrange
	ch := suite.subscribe(func(context.Context, []byte) error { return errors.New("db down") })

	// Act
	suite.deliver(ch, amqp.Table{RetryHeader: int32(2)})

	// Assert
	suite.Equal(outcome{requeue: false}, suite.settled())
	suite.Empty(ch.published)
}

func (suite *BusTestSuite) TestPermanentErrorIsDeadLetteredImmediately() {
	// Arrange
	ch := suite.subscribe(func(context.Context, []byte) error {
		return events.Permanent(errors.New("malformed"))
	})

	// Act
	suite.deliver(ch, nil)

	// Assert
	suite.Equal(outcome{requeue: false}, suite.settled())
	suite.Empty(ch.published)
}

func (suite *BusTestSuite) TestFailedRepublishRequeues() {
	// Arrange
	ch := suite.subscribe(func(context.Context, []byte) error { return errors.New("db down") })
	ch.mu.Lock()
	ch.publishErr = errors.New("channel closed")
	ch.mu.Unlock()

	// Act
	suite.deliver(ch, nil)

	// Assert
	suite.Equal(outcome{requeue: true}, suite.settled())
}

func (suite *BusTestSuite) TestDisconnectClosesEverything() {
	// Arrange
	ch := suite.subscribe(func(context.Context, []byte) error { return nil })
	event, err := events.New("post.created", map[string]string{})
	suite.Require().NoError(err)

	// Act
	suite.Require().NoError(suite.bus.Disconnect(suite.ctx))

	// Assert
	suite.True(ch.closed)
	suite.True(suite.conn.channel(0).closed)
	suite.True(suite.conn.closed)
	suite.ErrorIs(suite.bus.Publish(suite.ctx, event), events.ErrClosed)
}

func TestBusTestSuite(t *testing.T) {
	suite.Run(t, new(BusTestSuite))
}

func TestRetryCount(t *testing.T) {
	cases := map[string]struct {
		headers amqp.Table
		want    int
	}{
		"absent": {headers: nil, want: 0},
		"int32":  {headers: amqp.Table{RetryHeader: int32(2)}, want: 2},
		"int64":  {headers: amqp.Table{RetryHeader: int64(3)}, want: 3},
		"string": {headers: amqp.Table{RetryHeader: "3"}, want: 0},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := retryCount(tc.headers); got != tc.want {
				t.Fatalf("retryCount = %d, want %d", got, tc.want)
			}
		})
	}
}
