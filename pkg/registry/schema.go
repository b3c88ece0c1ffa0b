package registry

import "time"

// Status tracks how far an activity's worker has progressed.
type Status string

const (
	StatusPlanned     Status = "planned"
	StatusImplemented Status = "implemented"
	StatusVerified    Status = "verified"
	StatusDeprecated  Status = "deprecated"
)

func (s Status) Known() bool {
	switch s {
	case StatusPlanned, StatusImplemented, StatusVerified, StatusDeprecated:
		return true
	}
	return false
}

type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

// Activity binds a Zeebe task type to the JSON schemas of its job variables.
type Activity struct {
	ID                   string                 `json:"id"`
	DisplayName          string                 `json:"displayName"`
	Description          string                 `json:"description"`
	Category             string                 `json:"category"`
	Version              string                 `json:"version"`
	TaskType             string                 `json:"taskType"`
	ImplementationStatus Status                 `json:"implementationStatus"`
	InputSchema          map[string]interface{} `json:"inputSchema"`
	OutputSchema         map[string]interface{} `json:"outputSchema"`
	ErrorCodes           []string               `json:"errorCodes,omitempty"`
	Timeout              string                 `json:"timeout,omitempty"`
	Retries              int                    `json:"retries"`
	Workflows            []string               `json:"workflows,omitempty"`
	Tags                 []string               `json:"tags,omitempty"`
}

// TimeoutDuration is zero when Timeout is unset or malformed.
func (a Activity) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(a.Timeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// Runnable reports whether a worker should be opened for the activity.
func (a Activity) Runnable() bool {
	return a.ImplementationStatus == StatusImplemented || a.ImplementationStatus == StatusVerified
}
