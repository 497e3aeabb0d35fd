package shared

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vesselDeparted struct {
	EventHeader
	Reference string `json:"reference_number"`
	Vessel    string `json:"vessel"`
}

func TestEventHeader(t *testing.T) {
	shipmentID, tenantID := uuid.New(), uuid.New()
	at := time.Date(2026, 3, 9, 6, 30, 0, 0, time.UTC)
	evt := &vesselDeparted{
		EventHeader: NewEventHeader("OtifStageAdvanced", "Shipment", shipmentID, tenantID, at),
		Reference:   "SHP-001",
		Vessel:      "KM Mutiara",
	}

	var _ DomainEvent = evt
	assert.NotEqual(t, uuid.Nil, evt.EventID())
	assert.Equal(t, "OtifStageAdvanced", evt.EventType())
	assert.Equal(t, at, evt.OccurredAt())
	assert.Equal(t, shipmentID, evt.AggregateID())
	assert.Equal(t, "Shipment", evt.AggregateType())
	assert.Equal(t, tenantID, evt.TenantID())

	t.Run("every event gets its own id", func(t *testing.T) {
		other := NewEventHeader("OtifStageAdvanced", "Shipment", shipmentID, tenantID, at)
		assert.NotEqual(t, evt.EventID(), other.EventID())
	})

	t.Run("payload keeps header and body side by side", func(t *testing.T) {
		data, err := json.Marshal(evt)
		require.NoError(t, err)

		var decoded vesselDeparted
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, evt.EventHeader, decoded.EventHeader)
		assert.Equal(t, "KM Mutiara", decoded.Vessel)

		var raw map[string]any
		require.NoError(t, json.Unmarshal(data, &raw))
		assert.Equal(t, "SHP-001", raw["reference_number"])
		aggregate, ok := raw["aggregate"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, shipmentID.String(), aggregate["id"])
		assert.Equal(t, tenantID.String(), aggregate["tenant_id"])
	})
}
