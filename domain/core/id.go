package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RunID        ID
	CheckpointID ID
)

// NewRunID creates a time-ordered training run identifier
func NewRunID() RunID { return RunID(NewID()) }

// String conversions for domain IDs
func (id RunID) String() string        { return ID(id).String() }
func (id CheckpointID) String() string { return ID(id).String() }

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	return RunID(s), nil
}

// CheckpointIDForStep names the checkpoint written after the given global step
func CheckpointIDForStep(step int) CheckpointID {
	return CheckpointID(fmt.Sprintf("checkpoint-%d", step))
}

// ParseCheckpointStep extracts the global step from a checkpoint-<step> name
func ParseCheckpointStep(name string) (int, error) {
	rest, ok := strings.CutPrefix(name, "checkpoint-")
	if !ok || rest == "" {
		return 0, fmt.Errorf("not a checkpoint name: %q", name)
	}
	var step int
	if _, err := fmt.Sscanf(rest, "%d", &step); err != nil {
		return 0, fmt.Errorf("invalid checkpoint step in %q: %w", name, err)
	}
	if fmt.Sprint(step) != rest {
		return 0, fmt.Errorf("invalid checkpoint step in %q", name)
	}
	return step, nil
}
