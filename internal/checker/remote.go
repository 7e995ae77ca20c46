package checker

import (
	"context"

	"github.com/aleister1102/filestatus/internal/resource"
)

const (
	KindRemote = "remote"

	PrefRemoteEnabled           = "remoteStatusEnabled"
	PrefRemoteBackgroundEnabled = "remoteBackgroundCheck"
	PrefRemoteBackgroundMinutes = "remoteBackgroundMinutes"
)

// RemoteChecker applies the disk policy to non-local resources
type RemoteChecker struct {
	*Base
}

// NewRemoteChecker creates the remote checker
func NewRemoteChecker(deps Deps) *RemoteChecker {
	return &RemoteChecker{
		Base: NewBase(Options{
			Kind: KindRemote,
			Name: "Remote",
			Keys: PrefKeys{
				Enabled:            PrefRemoteEnabled,
				BackgroundEnabled:  PrefRemoteBackgroundEnabled,
				BackgroundDuration: PrefRemoteBackgroundMinutes,
			},
			Defaults:        DefaultSettings(),
			BackgroundOptIn: true,
		}, deps),
	}
}

// UpdateFileStatus probes remote resources when forced or stale. Local resources are inapplicable.
func (r *RemoteChecker) UpdateFileStatus(ctx context.Context, res resource.Resource, reason Reason) Status {
	if res.IsLocal() {
		return StatusInapplicable
	}

	settings := r.Settings()
	return r.GatedProbe(ctx, res, reason, settings.BackgroundDuration, probeHasChanged(res))
}
