package kafka_test

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/ximager/pkg/channels/kafka"
	"github.com/stretchr/testify/assert"
)

func TestCreateChannel_NoBrokers(t *testing.T) {
	for _, brokers := range [][]string{nil, {""}} {
		_, _, err := kafka.CreateChannel(watermill.NopLogger{}, brokers, "ximager")
		assert.ErrorIs(t, err, kafka.ErrNoBrokers)
	}
}
