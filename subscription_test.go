package wsi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/wsi/pkg/constants"
	"github.com/agentstation/wsi/pkg/errors"
	"github.com/agentstation/wsi/pkg/events"
	"github.com/agentstation/wsi/pkg/filter"
)

func TestCreateSubscriptionSharesDefault(t *testing.T) {
	c, _, _ := newTestClient(t)
	ctx := context.Background()

	a, err := c.CreateSubscription(ctx)
	require.NoError(t, err)
	b, err := c.CreateSubscription(ctx)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, constants.DefaultSubscriptionID, a.ID)
	assert.Equal(t, 2, a.refs)

	consumer, err := c.CreateSubscription(ctx, NewConsumer())
	require.NoError(t, err)
	other, err := c.CreateSubscription(ctx, WithFilter(filter.EventFilter{Categories: []int{1}}))
	require.NoError(t, err)
	assert.NotEqual(t, consumer.ID, other.ID)
	assert.NotEqual(t, constants.DefaultSubscriptionID, consumer.ID)
}

func TestNewSubscriptionReplaysState(t *testing.T) {
	c, _, _ := newTestClient(t)
	connect(c, record("E1", 1, "Unprocessed"))

	sub, err := c.CreateSubscription(context.Background(), NewConsumer())
	require.NoError(t, err)

	state, ok := sub.conn.Latest()
	require.True(t, ok)
	assert.Equal(t, Connected, state)

	r := sub.Events()
	defer r.Cancel()
	b := <-r.C()
	assert.True(t, b.Realigned)
	assert.Equal(t, []string{"E1"}, ids(b.Events))
}

func TestDestroyDefaultUnsubscribesWhenUnused(t *testing.T) {
	c, tr, _ := newTestClient(t)
	ctx := context.Background()

	_, err := c.CreateSubscription(ctx)
	require.NoError(t, err)
	_, err = c.CreateSubscription(ctx)
	require.NoError(t, err)
	consumer, err := c.CreateSubscription(ctx, NewConsumer())
	require.NoError(t, err)

	require.NoError(t, c.DestroySubscription(ctx, constants.DefaultSubscriptionID))
	require.NoError(t, c.DestroySubscription(ctx, constants.DefaultSubscriptionID))
	assert.Equal(t, 0, tr.unsubscribes, "a consumer subscription is still open")

	require.NoError(t, c.DestroySubscription(ctx, consumer.ID))
	assert.Equal(t, 1, tr.unsubscribes)

	_, ok := c.View(consumer.ID)
	assert.False(t, ok)

	require.NoError(t, c.DestroySubscription(ctx, 42), "unknown ids are ignored")
	assert.Equal(t, 1, tr.unsubscribes)
}

func TestConsumerAfterUnsubscribeResubscribes(t *testing.T) {
	c, tr, _ := newTestClient(t)
	ctx := context.Background()
	connect(c)

	_, err := c.CreateSubscription(ctx)
	require.NoError(t, err)
	first, err := c.CreateSubscription(ctx, NewConsumer())
	require.NoError(t, err)
	require.NoError(t, c.DestroySubscription(ctx, constants.DefaultSubscriptionID))
	require.NoError(t, c.DestroySubscription(ctx, first.ID))
	require.Equal(t, 1, tr.unsubscribes)
	require.Equal(t, []bool{false}, tr.subscribeCalls())

	second, err := c.CreateSubscription(ctx, WithFilter(filter.EventFilter{Categories: []int{1}}))
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false}, tr.subscribeCalls(), "consumer reopens the transport subscription")

	c.handleConnectionState(ctx, Disconnected)
	c.handleConnectionState(ctx, Connected)
	assert.Equal(t, []bool{false, false, false}, tr.subscribeCalls(), "reconnect subscribes again")

	c.handleBatch(ctx, []events.Record{record("E1", 1, "Unprocessed")})
	view, ok := c.View(second.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"E1"}, ids(view))
}

func TestConsumerWhileDisconnectedDefersSubscribe(t *testing.T) {
	c, tr, _ := newTestClient(t)
	ctx := context.Background()
	connect(c)

	_, err := c.CreateSubscription(ctx)
	require.NoError(t, err)
	require.NoError(t, c.DestroySubscription(ctx, constants.DefaultSubscriptionID))
	require.Equal(t, 1, tr.unsubscribes)

	c.handleConnectionState(ctx, Disconnected)
	_, err = c.CreateSubscription(ctx, NewConsumer())
	require.NoError(t, err)
	assert.Equal(t, []bool{false}, tr.subscribeCalls())

	c.handleConnectionState(ctx, Connected)
	assert.Equal(t, []bool{false, false}, tr.subscribeCalls())
}

func TestDestroyUnacquiredDefaultIsNoop(t *testing.T) {
	c, tr, _ := newTestClient(t)
	ctx := context.Background()
	connect(c)

	require.NoError(t, c.DestroySubscription(ctx, constants.DefaultSubscriptionID))
	assert.Equal(t, 0, tr.unsubscribes)
	assert.False(t, c.released)

	sub, err := c.CreateSubscription(ctx)
	require.NoError(t, err)
	require.NoError(t, c.DestroySubscription(ctx, sub.ID))
	require.NoError(t, c.DestroySubscription(ctx, sub.ID), "already released")
	assert.Equal(t, 1, tr.unsubscribes)
	assert.Equal(t, 0, sub.refs)
}

func TestUnsubscribeFailureFailsDefault(t *testing.T) {
	c, tr, _ := newTestClient(t)
	ctx := context.Background()
	connect(c)
	tr.unsubscribeErr = errors.New("connection reset")

	sub, err := c.CreateSubscription(ctx)
	require.NoError(t, err)

	err = c.DestroySubscription(ctx, constants.DefaultSubscriptionID)
	require.Error(t, err)
	var resErr *errors.ResourceError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "unsubscribe", resErr.Operation)
	assert.Error(t, sub.Err())

	fresh, err := c.CreateSubscription(ctx)
	require.NoError(t, err)
	assert.NotSame(t, sub, fresh)
	assert.NoError(t, fresh.Err())
	assert.Equal(t, []bool{false, false}, tr.subscribeCalls(), "resubscribed while connected")
}

func TestSetFilter(t *testing.T) {
	c, tr, _ := newTestClient(t)
	ctx := context.Background()
	connect(c, record("E1", 1, "Unprocessed"), record("E2", 2, "Unprocessed"))

	consumer, err := c.CreateSubscription(ctx, NewConsumer())
	require.NoError(t, err)

	require.NoError(t, c.SetFilter(ctx, filter.EventFilter{Categories: []int{2}}, consumer.ID, false))
	b := latestBatch(t, consumer)
	assert.True(t, b.Realigned)
	assert.Equal(t, []string{"E2"}, ids(b.Events))

	f, ok := c.Filter(consumer.ID)
	require.True(t, ok)
	assert.False(t, f.Empty)
	assert.Equal(t, []int{2}, f.Categories)

	// hidden events only matter on the default subscription
	require.NoError(t, c.SetFilter(ctx, filter.EventFilter{HiddenEvents: true}, consumer.ID, false))
	assert.Equal(t, []bool{false}, tr.subscribeCalls())

	require.NoError(t, c.SetFilter(ctx, filter.EventFilter{HiddenEvents: true}, constants.DefaultSubscriptionID, false))
	require.NoError(t, c.SetFilter(ctx, filter.EventFilter{HiddenEvents: true}, constants.DefaultSubscriptionID, false))
	require.NoError(t, c.SetFilter(ctx, filter.EventFilter{HiddenEvents: true}, constants.DefaultSubscriptionID, true))
	assert.Equal(t, []bool{false, true}, tr.subscribeCalls())

	require.NoError(t, c.SetFilter(ctx, filter.EventFilter{}, 42, false), "unknown ids are ignored")
}

func TestSetFilterPublishesFilter(t *testing.T) {
	c, _, _ := newTestClient(t)
	ctx := context.Background()
	sub, err := c.CreateSubscription(ctx, NewConsumer())
	require.NoError(t, err)

	r := sub.Filters()
	defer r.Cancel()
	initial := <-r.C()
	assert.True(t, initial.Empty)

	require.NoError(t, c.SetFilter(ctx, filter.EventFilter{SrcAlias: "AHU*"}, sub.ID, false))
	got := <-r.C()
	assert.Equal(t, "AHU*", got.SrcAlias)
	assert.False(t, got.Empty)
}

func TestRealignRestoresClosedForFilter(t *testing.T) {
	c, _, _ := newTestClient(t, WithInitialFilter(filter.EventFilter{Categories: []int{2}}))
	connect(c, record("E1", 1, "Unprocessed"))
	assert.True(t, c.store["E1"].ClosedForFilter)

	require.NoError(t, c.SetFilter(context.Background(), filter.EventFilter{}, constants.DefaultSubscriptionID, false))
	assert.False(t, c.store["E1"].ClosedForFilter)

	c.Realign(constants.DefaultSubscriptionID)
	b := latestBatch(t, c.subs[constants.DefaultSubscriptionID])
	assert.True(t, b.Realigned)
	require.Len(t, b.Events, 1)
	assert.False(t, b.Events[0].ClosedForFilter)
}

func TestViewIsSortedByPriority(t *testing.T) {
	c, _, _ := newTestClient(t)
	older := record("E3", 1, "Unprocessed")
	older.CreationTime = testNow.Add(-30 * time.Minute).Format("2006-01-02T15:04:05Z07:00")
	connect(c,
		record("E1", 2, "Unprocessed"),
		record("E2", 1, "Acked"),
		older,
		record("E4", 1, "Unprocessed"),
	)

	view, _ := c.View(constants.DefaultSubscriptionID)
	assert.Equal(t, []string{"E4", "E3", "E2", "E1"}, ids(view))
}

func TestSelection(t *testing.T) {
	c, _, _ := newTestClient(t)
	c.SelectEvents("E1", "E2", "E1", "E3")
	assert.Equal(t, []string{"E1", "E2", "E3"}, c.SelectedEvents())

	sel := c.SelectedEvents()
	sel[0] = "changed"
	assert.Equal(t, "E1", c.SelectedEvents()[0])

	c.SelectEvents()
	assert.Empty(t, c.SelectedEvents())
}

func TestOptionsValidation(t *testing.T) {
	_, err := New(newMockTransport(), WithLogger(nil))
	assert.True(t, errors.IsValidationError(err))

	_, err = New(newMockTransport(), WithClock(nil))
	assert.True(t, errors.IsValidationError(err))

	_, err = New(newMockTransport(), WithMetrics(nil))
	assert.True(t, errors.IsValidationError(err))
}
