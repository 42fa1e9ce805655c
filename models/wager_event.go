package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// WagerEventType classifies entries in the wager audit log
type WagerEventType string

const (
	EventTypeStatusChange  WagerEventType = "STATUS_CHANGE"
	EventTypePaymentUpdate WagerEventType = "PAYMENT_UPDATE"
	EventTypePlayerUpdate  WagerEventType = "PLAYER_UPDATE"
	EventTypeSystemMessage WagerEventType = "SYSTEM_MESSAGE"
)

// EventData is the closed set of payload variants carried by a WagerEvent.
// Each event type maps to exactly one concrete payload type.
type EventData interface {
	EventType() WagerEventType
}

// StatusChangeData records a state machine transition
type StatusChangeData struct {
	From WagerStatus `json:"from"`
	To   WagerStatus `json:"to"`
	By   string      `json:"by,omitempty"`
}

func (StatusChangeData) EventType() WagerEventType { return EventTypeStatusChange }

// PaymentUpdateData records an escrow movement
type PaymentUpdateData struct {
	EscrowID     string       `json:"escrow_id"`
	EscrowStatus EscrowStatus `json:"escrow_status"`
	Reference    string       `json:"reference,omitempty"`
	Amount       int64        `json:"amount,omitempty"`
}

func (PaymentUpdateData) EventType() WagerEventType { return EventTypePaymentUpdate }

// PlayerUpdateData records a change to a staked asset
type PlayerUpdateData struct {
	AssetID      string    `json:"asset_id"`
	Side         WagerSide `json:"side"`
	LockedValue  int64     `json:"locked_value,omitempty"`
	CurrentValue int64     `json:"current_value,omitempty"`
	Disposed     bool      `json:"disposed,omitempty"`
}

func (PlayerUpdateData) EventType() WagerEventType { return EventTypePlayerUpdate }

// SystemMessageData carries a free-form operational note
type SystemMessageData struct {
	Note string `json:"note"`
}

func (SystemMessageData) EventType() WagerEventType { return EventTypeSystemMessage }

// WagerEvent is one append-only audit log entry. Rows are never mutated or
// deleted; downstream notification consumers read them to drive user-facing
// messages.
type WagerEvent struct {
	ID        int64          `db:"id"`
	WagerID   int64          `db:"wager_id"`
	Type      WagerEventType `db:"type"`
	Message   string         `db:"message"`
	Data      EventData      `db:"data"`
	CreatedAt time.Time      `db:"created_at"`
}

// DecodeEventData unmarshals a stored payload into the variant matching the
// event type
func DecodeEventData(t WagerEventType, raw []byte) (EventData, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var (
		data EventData
		err  error
	)
	switch t {
	case EventTypeStatusChange:
		var d StatusChangeData
		err = json.Unmarshal(raw, &d)
		data = d
	case EventTypePaymentUpdate:
		var d PaymentUpdateData
		err = json.Unmarshal(raw, &d)
		data = d
	case EventTypePlayerUpdate:
		var d PlayerUpdateData
		err = json.Unmarshal(raw, &d)
		data = d
	case EventTypeSystemMessage:
		var d SystemMessageData
		err = json.Unmarshal(raw, &d)
		data = d
	default:
		return nil, fmt.Errorf("unknown wager event type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", t, err)
	}
	return data, nil
}
