package domain

import "time"

// TriggerMessage tells a node to capture a still.
//
// ShootAt is the absolute capture instant shared by every node in a round.
// A nil ShootAt means "capture after the node's default lead time"; Prefix
// names the produced artifact and is only meaningful when ShootAt is set
// (the wire grammar is positional). Immutable once constructed.
type TriggerMessage struct {
	ShootAt *time.Time
	Prefix  string
}

// Target resolves the capture instant, falling back to now+defaultLead
// when the message carries no explicit shoot time.
func (m TriggerMessage) Target(now time.Time, defaultLead time.Duration) time.Time {
	if m.ShootAt != nil {
		return *m.ShootAt
	}
	return now.Add(defaultLead)
}
