//go:build integration

package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hope/internal/platform/kafka/consumer"
	"hope/internal/platform/kafka/producer"
	"hope/pkg/testutil/containers"
)

func TestKafkaPublisherRoundTrip(t *testing.T) {
	broker := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	const topic = "hope.tickets.notify-it"
	require.NoError(t, broker.CreateTopic(ctx, topic))

	prod, err := producer.New(broker.Brokers)
	require.NoError(t, err)
	defer prod.Close(ctx)

	ticket := newTicket(t)
	require.NoError(t, NewKafkaPublisher(prod, topic).TicketCreated(ctx, ticket))

	received := make(chan *consumer.Message, 1)
	cons, err := consumer.New(broker.Brokers, "notify-it", []string{topic},
		consumer.HandlerFunc(func(_ context.Context, msg *consumer.Message) error {
			select {
			case received <- msg:
			default:
			}
			return nil
		}))
	require.NoError(t, err)
	defer cons.Close()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = cons.Run(runCtx) }()

	select {
	case msg := <-received:
		assert.Equal(t, ticket.ID.String(), string(msg.Key))
		assert.Equal(t, EventTicketCreated, msg.Headers["event_type"])
		var event Event
		require.NoError(t, json.Unmarshal(msg.Value, &event))
		assert.Equal(t, ticket.ID, event.TicketID)
	case <-ctx.Done():
		t.Fatal("no ticket event consumed before timeout")
	}
}
