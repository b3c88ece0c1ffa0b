// Package registry describes the chatbot's Zeebe activities: task types,
// input/output schemas and the error codes each may throw.
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"chatbot-parser/internal/common/validation"

	"github.com/hashicorp/go-multierror"
)

//go:embed activities.json
var defaultActivities []byte

// Default returns the built-in chatbot activity registry.
func Default() *ActivityRegistry {
	var reg ActivityRegistry
	if err := json.Unmarshal(defaultActivities, &reg); err != nil {
		panic(fmt.Sprintf("embedded activity registry: %v", err))
	}
	return &reg
}

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*ActivityRegistry, error) {
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse activity registry: %w", err)
	}
	return &reg, nil
}

// Find returns the activity bound to taskType.
func (r *ActivityRegistry) Find(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// TaskTypes lists the registered task types in sorted order.
func (r *ActivityRegistry) TaskTypes() []string {
	out := make([]string, 0, len(r.Activities))
	for _, a := range r.Activities {
		out = append(out, a.TaskType)
	}
	sort.Strings(out)
	return out
}

// InputSchema compiles the input schema of taskType.
func (r *ActivityRegistry) InputSchema(taskType string) (*validation.Schema, error) {
	a, ok := r.Find(taskType)
	if !ok {
		return nil, fmt.Errorf("activity for task type %q not registered", taskType)
	}
	if len(a.InputSchema) == 0 {
		return nil, fmt.Errorf("activity %s has no input schema", a.ID)
	}
	return validation.Compile(a.InputSchema)
}

// Validate reports every problem in the registry at once.
func (r *ActivityRegistry) Validate() error {
	var result *multierror.Error
	ids := make(map[string]bool)
	taskTypes := make(map[string]bool)

	if len(r.Activities) == 0 {
		result = multierror.Append(result, fmt.Errorf("registry contains no activities"))
	}

	for i, a := range r.Activities {
		if a.DisplayName == "" || a.Category == "" {
			result = multierror.Append(result, fmt.Errorf("activity %d: displayName and category are required", i))
		}
		if err := validation.ValidateActivityNaming(a.ID); err != nil {
			result = multierror.Append(result, fmt.Errorf("activity %d: %w", i, err))
		}
		if ids[a.ID] {
			result = multierror.Append(result, fmt.Errorf("activity %d: duplicate id %q", i, a.ID))
		}
		ids[a.ID] = true

		if a.TaskType == "" {
			result = multierror.Append(result, fmt.Errorf("activity %s: taskType is required", a.ID))
		} else if taskTypes[a.TaskType] {
			result = multierror.Append(result, fmt.Errorf("activity %s: duplicate taskType %q", a.ID, a.TaskType))
		}
		taskTypes[a.TaskType] = true

		for name, schema := range map[string]map[string]interface{}{"inputSchema": a.InputSchema, "outputSchema": a.OutputSchema} {
			if len(schema) == 0 {
				continue
			}
			if _, err := validation.Compile(schema); err != nil {
				result = multierror.Append(result, fmt.Errorf("activity %s: %s: %w", a.ID, name, err))
			}
		}

		if a.ImplementationStatus != "" && !a.ImplementationStatus.Known() {
			result = multierror.Append(result, fmt.Errorf("activity %s: unknown implementationStatus %q", a.ID, a.ImplementationStatus))
		}

		if a.Timeout != "" {
			if _, err := time.ParseDuration(a.Timeout); err != nil {
				result = multierror.Append(result, fmt.Errorf("activity %s: timeout: %w", a.ID, err))
			}
		}
	}
	return result.ErrorOrNil()
}

// Update sets one scalar field of activity id.
func (r *ActivityRegistry) Update(id, field, value string) error {
	var a *Activity
	for i := range r.Activities {
		if r.Activities[i].ID == id {
			a = &r.Activities[i]
			break
		}
	}
	if a == nil {
		return fmt.Errorf("activity with ID %s not found", id)
	}

	switch field {
	case "status":
		if !Status(value).Known() {
			return fmt.Errorf("invalid status %q", value)
		}
		a.ImplementationStatus = Status(value)
	case "version":
		a.Version = value
	case "displayName":
		a.DisplayName = value
	case "description":
		a.Description = value
	case "category":
		a.Category = value
	case "taskType":
		a.TaskType = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		a.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil || retries < 0 {
			return fmt.Errorf("invalid retries value %q", value)
		}
		a.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}
	return nil
}

// Save writes the registry as indented JSON, stamping LastUpdated.
func (r *ActivityRegistry) Save(path string) error {
	r.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
