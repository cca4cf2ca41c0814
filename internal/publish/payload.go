package publish

import (
	"elspot2mqtt/internal/charge"
	"elspot2mqtt/internal/horizon"
)

// Payload is the wire format published to the home-automation bus.
// ChargeWindow is null when no chargeable window was found.
type Payload struct {
	Ahead        []horizon.AheadRecord `json:"ahead"`
	Behind       []horizon.Record      `json:"behind"`
	ChargeWindow *charge.Window        `json:"charge_window"`
}
