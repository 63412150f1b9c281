package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEventEnvelope(t *testing.T) {
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	e := New(TypeClubMemberJoined, at, map[string]string{"club_id": "c1"})

	raw, err := json.Marshal(e)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "club.member_joined", decoded["type"])
	assert.Equal(t, "2026-05-04T08:00:00Z", decoded["occurred_at"])
	assert.NotEmpty(t, decoded["id"])
	assert.Equal(t, map[string]interface{}{"club_id": "c1"}, decoded["payload"])
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), "k", New(TypeEquipmentSynced, time.Now(), nil)))
	assert.NoError(t, p.Close())
}

func TestCompletionLogsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := NewKafkaPublisher([]string{"localhost:9092"}, "fitclub.events", zap.New(core))
	t.Cleanup(func() { _ = p.Close() })

	p.completion([]kafka.Message{{Key: []byte("club-1")}}, nil)
	assert.Zero(t, logs.Len())

	p.completion([]kafka.Message{{Key: []byte("club-1")}, {Key: []byte("club-2")}}, errors.New("broker down"))
	assert.Equal(t, 2, logs.FilterMessage("event delivery failed").Len())
}
