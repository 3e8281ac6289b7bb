package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaPublisherSendsMovement(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var evt MovementEvent
		if err := json.Unmarshal(val, &evt); err != nil {
			return err
		}
		if evt.EventType != EventTypeStockMoved {
			return errors.New("unexpected event type " + evt.EventType)
		}
		if evt.EventID == "" {
			return errors.New("event id not set")
		}
		if evt.ProductID != 7 || evt.Quantity != -3 {
			return errors.New("payload mismatch")
		}
		return nil
	})

	p := newKafkaPublisher(producer, TopicInventoryMovements)
	err := p.PublishMovement(context.Background(), MovementEvent{
		ProductID:    7,
		MovementType: "output",
		Quantity:     -3,
	})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestKafkaPublisherReturnsSendError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := newKafkaPublisher(producer, TopicInventoryMovements)
	err := p.PublishMovement(context.Background(), MovementEvent{ProductID: 1, Quantity: 1})

	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestMemoryPublisherCopiesEvents(t *testing.T) {
	p := &MemoryPublisher{}
	require.NoError(t, p.PublishMovement(context.Background(), MovementEvent{ProductID: 1}))
	require.NoError(t, p.PublishMovement(context.Background(), MovementEvent{ProductID: 2}))

	got := p.Events()
	require.Len(t, got, 2)
	got[0].ProductID = 99
	assert.Equal(t, uint(1), p.Events()[0].ProductID)
}
