package checker

import (
	"context"
	"time"

	"github.com/aleister1102/filestatus/internal/prefs"
	"github.com/aleister1102/filestatus/internal/resource"
	"github.com/rs/zerolog"
)

// Checker decides whether a resource's status changed.
type Checker interface {
	prefs.Observer

	Kind() string
	Name() string
	// Initialize binds every configured preference. It fails only when the store is unavailable.
	Initialize() error
	// Shutdown removes all preference subscriptions. Failures are logged, never returned.
	Shutdown()
	IsActive() bool
	IsBackgroundCheckingEnabled() bool
	UpdateFileStatus(ctx context.Context, res resource.Resource, reason Reason) Status
	Cache() *Cache
	Settings() Settings
	State() State
}

// RecheckFunc is called with a checker's name when a change to its enabled
// flag or executable may alter results.
type RecheckFunc func(checkerName string)

// RecheckNotifier is implemented by checkers able to request a re-check
type RecheckNotifier interface {
	SetRecheckFunc(fn RecheckFunc)
}

// Deps are the collaborators injected into every checker
type Deps struct {
	Store  prefs.Store
	Logger zerolog.Logger
	// Clock defaults to time.Now
	Clock func() time.Time
}

func (d Deps) now() func() time.Time {
	if d.Clock != nil {
		return d.Clock
	}
	return time.Now
}
