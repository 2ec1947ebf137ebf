package duel

import "time"

// Kind tags an Outcome.
type Kind int

// Outcome kinds.
const (
	DirectSuccess Kind = iota + 1
	Backfire
	CooldownBlocked
	CooldownOverridden
)

func (k Kind) String() string {
	switch k {
	case DirectSuccess:
		return "direct_success"
	case Backfire:
		return "backfire"
	case CooldownBlocked:
		return "cooldown_blocked"
	case CooldownOverridden:
		return "cooldown_overridden"
	default:
		return "unknown"
	}
}

// Odds describes one probability check. Rolled is false when the result
// was decided by rank alone.
type Odds struct {
	Rolled    bool    `json:"rolled"`
	Distance  int     `json:"distance,omitempty"`
	Chance    float64 `json:"chance"`
	Threshold int     `json:"threshold"`
	Roll      int     `json:"roll,omitempty"`
}

// Success reports whether the roll was under the threshold. An unrolled
// check always succeeds.
func (o Odds) Success() bool {
	return !o.Rolled || o.Roll <= o.Threshold
}

// Outcome is the result of a resolved duel.
//
// DirectSuccess and CooldownOverridden restrict the target for Duration.
// Backfire restricts the actor for Duration. CooldownBlocked restricts
// nobody and carries the cooldown time left in Remaining.
type Outcome struct {
	Kind      Kind          `json:"kind"`
	ActorID   string        `json:"actor_id"`
	TargetID  string        `json:"target_id"`
	VictimID  string        `json:"victim_id,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Remaining time.Duration `json:"remaining,omitempty"`
	Odds      Odds          `json:"odds"`
	Bypass    *Odds         `json:"bypass,omitempty"`
}

// Applied reports whether a restriction was applied.
func (o Outcome) Applied() bool {
	return o.Kind != CooldownBlocked && o.VictimID != ""
}

// Backfired reports whether the actor was the one penalized.
func (o Outcome) Backfired() bool {
	return o.Kind == Backfire
}
