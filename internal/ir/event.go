package ir

// EventKind names a registry notification.
type EventKind string

const (
	EventClaimCreated    EventKind = "ClaimCreated"
	EventClaimRevoked    EventKind = "ClaimRevoked"
	EventClaimTransfered EventKind = "ClaimTransfered"
)

// ValidEventKinds lists every kind a registry can emit.
var ValidEventKinds = map[EventKind]bool{
	EventClaimCreated:    true,
	EventClaimRevoked:    true,
	EventClaimTransfered: true,
}

// Event is emitted once per successful mutation.
// Receiver is empty unless Kind is EventClaimTransfered.
type Event struct {
	Kind     EventKind `json:"kind"`
	Caller   AccountID `json:"caller"`
	Claim    Claim     `json:"claim"`
	Receiver AccountID `json:"receiver,omitempty"`
	Height   Height    `json:"height"`
}

// Payload returns the event as a plain object suitable for MarshalCanonical.
func (e Event) Payload() map[string]any {
	m := map[string]any{
		"kind":   string(e.Kind),
		"caller": string(e.Caller),
		"claim":  e.Claim.String(),
		"height": int64(e.Height),
	}
	if e.Receiver != "" {
		m["receiver"] = string(e.Receiver)
	}
	return m
}

// ClaimCreated builds the event for a successful Create.
func ClaimCreated(caller AccountID, claim Claim, h Height) Event {
	return Event{Kind: EventClaimCreated, Caller: caller, Claim: claim.Clone(), Height: h}
}

// ClaimRevoked builds the event for a successful Revoke.
func ClaimRevoked(caller AccountID, claim Claim, h Height) Event {
	return Event{Kind: EventClaimRevoked, Caller: caller, Claim: claim.Clone(), Height: h}
}

// ClaimTransfered builds the event for a successful Transfer.
func ClaimTransfered(caller AccountID, claim Claim, receiver AccountID, h Height) Event {
	return Event{Kind: EventClaimTransfered, Caller: caller, Claim: claim.Clone(), Receiver: receiver, Height: h}
}
