package checker

import (
	"fmt"
	"time"
)

// Reason tells a checker why a status check was requested
type Reason int

const (
	ReasonBackgroundCheck Reason = iota
	ReasonOnFocusCheck
	ReasonFileChanged
	ReasonForcedCheck
)

func (r Reason) String() string {
	switch r {
	case ReasonBackgroundCheck:
		return "background"
	case ReasonOnFocusCheck:
		return "on_focus"
	case ReasonFileChanged:
		return "file_changed"
	case ReasonForcedCheck:
		return "forced"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// ParseReason maps a reason name back to its value
func ParseReason(s string) (Reason, error) {
	for _, r := range []Reason{ReasonBackgroundCheck, ReasonOnFocusCheck, ReasonFileChanged, ReasonForcedCheck} {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown check reason '%s'", s)
}

// Status is the outcome of a single UpdateFileStatus call
type Status int

const (
	StatusUnchanged Status = iota
	StatusChanged
	// StatusInapplicable means the checker has nothing to say about the resource.
	StatusInapplicable
)

func (s Status) String() string {
	switch s {
	case StatusUnchanged:
		return "unchanged"
	case StatusChanged:
		return "changed"
	case StatusInapplicable:
		return "inapplicable"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// State is the lifecycle state of a checker
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateDisabled
	StateShutDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateDisabled:
		return "disabled"
	case StateShutDown:
		return "shut_down"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DefaultBackgroundDuration is how long a check result stays fresh unless configured
const DefaultBackgroundDuration = 15 * time.Minute

// Settings is a snapshot of a checker's effective configuration
type Settings struct {
	Enabled            bool
	BackgroundEnabled  bool
	BackgroundDuration time.Duration
	Recursive          bool
	Executable         string
}

// DefaultSettings returns the settings a checker starts with before binding
func DefaultSettings() Settings {
	return Settings{
		Enabled:            true,
		BackgroundEnabled:  false,
		BackgroundDuration: DefaultBackgroundDuration,
		Recursive:          false,
		Executable:         "",
	}
}

// PrefKeys names the preference each setting is bound to. An empty key leaves
// the setting at its default and unobserved.
type PrefKeys struct {
	Enabled            string
	Executable         string
	BackgroundEnabled  string
	BackgroundDuration string
	Recursive          string
}
