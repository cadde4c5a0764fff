package domain

type ConnectionState int

const (
	StateNotLoaded ConnectionState = iota
	StateLoading
	StateReady
	StateShuttingDown
)

func (s ConnectionState) String() string {
	switch s {
	case StateNotLoaded:
		return "not_loaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// QueueInstalled reports whether commands issued in this state reach the
// widget's command queue.
func (s ConnectionState) QueueInstalled() bool {
	return s != StateNotLoaded
}

type Verb string

const (
	VerbBoot              Verb = "boot"
	VerbUpdate            Verb = "update"
	VerbShutdown          Verb = "shutdown"
	VerbShow              Verb = "show"
	VerbHide              Verb = "hide"
	VerbShowNewMessage    Verb = "showNewMessage"
	VerbTrackEvent        Verb = "trackEvent"
	VerbOnShow            Verb = "onShow"
	VerbOnMessageSent     Verb = "onMessageSent"
	VerbReattachActivator Verb = "reattach_activator"
)

type WidgetCommand struct {
	Verb Verb  `json:"verb"`
	Args []any `json:"args,omitempty"`
}

// WidgetEvent is a lifecycle notification reported by the widget host.
type WidgetEvent string

const (
	EventLoaded           WidgetEvent = "loaded"
	EventLoadFailed       WidgetEvent = "load_failed"
	EventShow             WidgetEvent = "show"
	EventMessageSent      WidgetEvent = "message_sent"
	EventNavigate         WidgetEvent = "navigate"
	EventLocation         WidgetEvent = "location"
	EventBooted           WidgetEvent = "booted"
	EventShutdownComplete WidgetEvent = "shutdown_complete"
	EventReattach         WidgetEvent = "reattach"
)

func (e WidgetEvent) Valid() bool {
	switch e {
	case EventLoaded, EventLoadFailed, EventShow, EventMessageSent, EventNavigate,
		EventLocation, EventBooted, EventShutdownComplete, EventReattach:
		return true
	default:
		return false
	}
}

// SubscriptionVerb returns the listener verb for events the widget emits itself.
func (e WidgetEvent) SubscriptionVerb() (Verb, bool) {
	switch e {
	case EventShow:
		return VerbOnShow, true
	case EventMessageSent:
		return VerbOnMessageSent, true
	default:
		return "", false
	}
}

// Settings is the widget configuration record read once at boot.
type Settings struct {
	AppID                  string     `json:"app_id"`
	APIBase                string     `json:"api_base,omitempty"`
	UserID                 string     `json:"user_id,omitempty"`
	Email                  string     `json:"email,omitempty"`
	Name                   string     `json:"name,omitempty"`
	CreatedAt              int64      `json:"created_at,omitempty"`
	CustomAttributes       Attributes `json:"custom_attributes,omitempty"`
	HideDefaultLauncher    bool       `json:"hide_default_launcher"`
	CustomLauncherSelector string     `json:"custom_launcher_selector,omitempty"`
}

func (s Settings) Clone() Settings {
	s.CustomAttributes = s.CustomAttributes.Clone()
	return s
}

// WithIdentity returns s carrying the identity fields of snapshot.
func (s Settings) WithIdentity(snapshot IdentitySnapshot) Settings {
	s.UserID = snapshot.UserID
	s.Email = snapshot.Email
	s.Name = snapshot.Name
	s.CreatedAt = snapshot.CreatedAt
	s.CustomAttributes = s.CustomAttributes.Merge(snapshot.CustomAttributes)
	return s
}

// UpdatePayload is the argument of an "update" command for snapshot.
func UpdatePayload(snapshot IdentitySnapshot) map[string]any {
	payload := map[string]any{"user_id": snapshot.UserID}
	if snapshot.Email != "" {
		payload["email"] = snapshot.Email
	}
	if snapshot.Name != "" {
		payload["name"] = snapshot.Name
	}
	if snapshot.CreatedAt != 0 {
		payload["created_at"] = snapshot.CreatedAt
	}
	if len(snapshot.CustomAttributes) > 0 {
		payload["custom_attributes"] = map[string]any(snapshot.CustomAttributes.Clone())
	}

	return payload
}
