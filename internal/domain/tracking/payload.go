package tracking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/freightdesk/backend/internal/domain/shared"
)

// Payload carries the free-form, stage-specific fields of an OTIF event.
// Only the presence of required keys is checked; values are stored as given.
type Payload map[string]any

// requiredPayloadFields lists the keys each target stage must carry.
var requiredPayloadFields = map[Stage][]string{
	StageScheduled:                {"etd", "eta"},
	StagePickup:                   {"driver_name", "vehicle_number"},
	StageOriginLocalHandling:      {"warehouse"},
	StageDeparture:                {"port_of_loading", "shipping_line", "vessel", "voyage"},
	StageArrival:                  {"port_of_discharge"},
	StageDestinationLocalHandling: {"warehouse"},
	StageDelivery:                 {"receiver_name"},
	StageRejected:                 {"reason"},
	StageCancelled:                {"reason"},
}

// RequiredFields returns the payload keys required for a stage
func RequiredFields(stage Stage) []string {
	fields := requiredPayloadFields[stage]
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}

// Missing returns the required keys that are absent or blank
func (p Payload) Missing(keys []string) []string {
	var missing []string
	for _, k := range keys {
		if isBlank(p[k]) {
			missing = append(missing, k)
		}
	}
	sort.Strings(missing)
	return missing
}

// String returns the value under key as a string, or "" when absent
func (p Payload) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Clone returns a shallow copy so callers cannot alias a stored event payload
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func isBlank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	}
	return false
}

// ValidatePayload rejects a payload missing any field required by stage
func ValidatePayload(stage Stage, payload Payload) error {
	missing := payload.Missing(requiredPayloadFields[stage])
	if len(missing) == 0 {
		return nil
	}
	return shared.NewValidationError("MISSING_STAGE_FIELDS",
		fmt.Sprintf("Stage %s requires fields: %s", stage, strings.Join(missing, ", ")))
}
