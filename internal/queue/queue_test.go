package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/redwatch/redwatch/internal/domain/watch"
)

func TestMessageRoundtrip(t *testing.T) {
	t.Parallel()

	msg := NewMessage(watch.CanonicalRecord{
		EntityID:  "2024/123",
		Kind:      watch.RecordKindPerson,
		Fields:    watch.Fields{"name": "SMITH, John"},
		FetchedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	})

	data, err := msg.Encode()
	require.NoError(t, err)

	decoded, err := DecodeMessage(data)
	require.NoError(t, err)
	require.Equal(t, msg.ID, decoded.ID)
	require.Equal(t, msg.Record, decoded.Record)
	require.NoError(t, decoded.Record.Validate())
}

func TestDecodeMessage_Garbage(t *testing.T) {
	t.Parallel()

	_, err := DecodeMessage([]byte("not json"))
	require.Error(t, err)
}
