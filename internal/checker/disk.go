package checker

import (
	"context"

	"github.com/aleister1102/filestatus/internal/resource"
)

const (
	KindDisk = "disk"

	PrefDiskEnabled           = "diskStatusEnabled"
	PrefDiskBackgroundEnabled = "diskBackgroundCheck"
	PrefDiskBackgroundMinutes = "diskBackgroundMinutes"
)

// DiskChecker reports local files whose modification state changed. It opts
// into background rounds, which is how watch mode reaches local files.
type DiskChecker struct {
	*Base
}

// NewDiskChecker creates the disk checker
func NewDiskChecker(deps Deps) *DiskChecker {
	return &DiskChecker{
		Base: NewBase(Options{
			Kind: KindDisk,
			Name: "Disk",
			Keys: PrefKeys{
				Enabled:            PrefDiskEnabled,
				BackgroundEnabled:  PrefDiskBackgroundEnabled,
				BackgroundDuration: PrefDiskBackgroundMinutes,
			},
			Defaults:        DefaultSettings(),
			BackgroundOptIn: true,
		}, deps),
	}
}

// UpdateFileStatus probes local resources when forced or stale; everything else is unchanged.
func (d *DiskChecker) UpdateFileStatus(ctx context.Context, res resource.Resource, reason Reason) Status {
	if !res.IsLocal() {
		return StatusUnchanged
	}

	settings := d.Settings()
	return d.GatedProbe(ctx, res, reason, settings.BackgroundDuration, probeHasChanged(res))
}

// probeHasChanged adapts Resource.HasChanged to a status probe
func probeHasChanged(res resource.Resource) func(context.Context) (Status, error) {
	return func(ctx context.Context) (Status, error) {
		changed, err := res.HasChanged(ctx)
		if err != nil {
			return StatusUnchanged, err
		}
		if changed {
			return StatusChanged, nil
		}
		return StatusUnchanged, nil
	}
}
