package application

import (
	"sync"

	"github.com/bnema/stellar-site/internal/domain"
)

// SettingsRegistry owns the widget configuration record. Callers get copies;
// every change is a read-merge-write under the registry lock.
type SettingsRegistry struct {
	mu       sync.Mutex
	defaults domain.Settings
	current  domain.Settings
}

func NewSettingsRegistry(defaults domain.Settings) *SettingsRegistry {
	return &SettingsRegistry{defaults: defaults.Clone(), current: defaults.Clone()}
}

func (r *SettingsRegistry) Snapshot() domain.Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.Clone()
}

func (r *SettingsRegistry) SetAppID(appID string) domain.Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	if appID != "" {
		r.current.AppID = appID
	}
	return r.current.Clone()
}

func (r *SettingsRegistry) ApplyIdentity(snapshot domain.IdentitySnapshot) domain.Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = r.current.WithIdentity(snapshot)
	return r.current.Clone()
}

func (r *SettingsRegistry) MergeCustomAttributes(attrs domain.Attributes) domain.Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current.CustomAttributes = r.current.CustomAttributes.Merge(attrs)
	return r.current.Clone()
}

// Reset drops identity fields and attributes, keeping the static
// configuration the registry was created with.
func (r *SettingsRegistry) Reset() domain.Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	appID := r.current.AppID
	r.current = r.defaults.Clone()
	if r.current.AppID == "" {
		r.current.AppID = appID
	}
	return r.current.Clone()
}
