package outbox

import (
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWireFormat(t *testing.T) {
	payload := []byte(`{"user_id":"u1"}`)
	frame := encodeWireFormat(42, payload)

	require.Len(t, frame, 5+len(payload))
	assert.Equal(t, byte(0), frame[0], "Confluent magic byte")
	assert.Equal(t, uint32(42), binary.BigEndian.Uint32(frame[1:5]))
	assert.Equal(t, payload, frame[5:])
}

func TestSchemaCatalogCoversEveryEventType(t *testing.T) {
	for eventType := range Catalog {
		entry, ok := schemaCatalog[eventType]
		require.Truef(t, ok, "missing schema for %s", eventType)
		assert.True(t, json.Valid([]byte(entry.Schema)), "schema for %s must be valid JSON", eventType)
	}
	require.Len(t, schemaCatalog, len(Catalog))
}

func TestCatalogRouting(t *testing.T) {
	summary := Catalog["summary.updated"]
	assert.Equal(t, "daily_summary", summary.AggregateType)
	assert.Equal(t, "progress_summary_events", summary.Topic)
	assert.Equal(t, "progress_summary_events-value", summary.SchemaSubject)

	streak := Catalog["streak.advanced"]
	assert.Equal(t, "streak", streak.AggregateType)
	assert.Equal(t, "progress_streak_events", streak.Topic)
	assert.Equal(t, "progress_streak_events-value", streak.SchemaSubject)
}

func TestPayloadsMatchDeclaredSchemas(t *testing.T) {
	// Every JSON field the payload structs emit must be declared in the
	// registered schema, otherwise registry validation breaks at runtime.
	assertFieldsDeclared(t, summaryUpdatedSchema, SummaryUpdated{})
	assertFieldsDeclared(t, streakAdvancedSchema, StreakAdvanced{})
}

func assertFieldsDeclared(t *testing.T, schema string, payload interface{}) {
	t.Helper()

	var parsed struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	require.NoError(t, json.Unmarshal([]byte(schema), &parsed))

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &fields))

	for field := range fields {
		assert.Containsf(t, parsed.Properties, field, "field %s is not declared in the schema", field)
	}
}
