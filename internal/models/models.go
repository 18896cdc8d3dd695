package models

import (
	"fmt"
	"time"
)

// SecurityMode is a Cloudflare zone security_level value.
type SecurityMode string

const (
	ModeOff            SecurityMode = "off"
	ModeEssentiallyOff SecurityMode = "essentially_off"
	ModeLow            SecurityMode = "low"
	ModeMedium         SecurityMode = "medium"
	ModeHigh           SecurityMode = "high"
	ModeUnderAttack    SecurityMode = "under_attack"
)

func (m SecurityMode) Valid() bool {
	switch m {
	case ModeOff, ModeEssentiallyOff, ModeLow, ModeMedium, ModeHigh, ModeUnderAttack:
		return true
	}
	return false
}

// ModeState is the last mode this tool applied or reconciled.
type ModeState struct {
	Mode      SecurityMode `json:"mode"`
	ChangedAt time.Time    `json:"changed_at"`
}

type AlertState struct {
	LastAlertAt time.Time `json:"last_alert_at"`
}

// ModeChange describes an applied (or attempted, when Failed) transition.
type ModeChange struct {
	From      SecurityMode
	To        SecurityMode
	Load      float64
	Threshold float64
	At        time.Time
	Host      string
	Failed    bool
	Err       string
}

// Entering reports whether the change moves into under attack mode.
func (c ModeChange) Entering() bool { return c.To == ModeUnderAttack }

type Action string

const (
	ActionNoop       Action = "noop"
	ActionReconciled Action = "reconciled"
	ActionSuppressed Action = "suppressed"
	ActionApplied    Action = "applied"
	ActionFailed     Action = "failed"
	ActionAborted    Action = "aborted"
)

// Cycle is the journal entry of one decision cycle.
type Cycle struct {
	ID        string       `json:"id"`
	StartedAt time.Time    `json:"started_at"`
	Load      float64      `json:"load"`
	Threshold float64      `json:"threshold"`
	Current   SecurityMode `json:"current"`
	Target    SecurityMode `json:"target"`
	Action    Action       `json:"action"`
	Error     string       `json:"error,omitempty"`
}

type NotificationEvent struct {
	Channel   string
	Status    string
	Attempts  int
	LastError string
	SentAt    *time.Time
}

// IOError reports a failure of the load source or of local state access.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("io %s: %v", e.Op, e.Err) }

func (e *IOError) Unwrap() error { return e.Err }
