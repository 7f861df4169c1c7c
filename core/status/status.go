// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package status

import (
	"fmt"

	"github.com/juju/errors"
)

// Status is the workload status of a unit, as reported to the
// agent with status-set.
type Status string

// String returns a string representation of the Status.
func (s Status) String() string {
	return string(s)
}

const (
	// Unknown is set when:
	// The unit agent has run hooks but the charm has not called
	// status-set yet.
	Unknown Status = "unknown"

	// Maintenance is set when:
	// The unit is not yet providing services, but is actively doing stuff
	// in preparation for providing those services.
	// This is a "spinning" state, not an error state.
	// It reflects activity on the unit itself, not on peers or related units.
	Maintenance Status = "maintenance"

	// Waiting is set when:
	// The unit is unable to progress to an active state because a resource
	// or an application to which it is related is not ready yet.
	Waiting Status = "waiting"

	// Blocked is set when:
	// The unit needs manual intervention to get back to the Running state.
	Blocked Status = "blocked"

	// Active is set when:
	// The unit believes it is correctly offering all the services it has
	// been asked to offer.
	Active Status = "active"
)

// ValidWorkloadStatus returns true if status has a valid value (that is to say,
// a value that a charm may set) for units.
func ValidWorkloadStatus(status Status) bool {
	switch status {
	case
		Blocked,
		Maintenance,
		Waiting,
		Active:
		return true
	default:
		return false
	}
}

// StatusInfo holds a Status and associated information.
type StatusInfo struct {
	Status  Status
	Message string
}

// Validate returns an error if the status cannot be set by a charm.
func (info StatusInfo) Validate() error {
	if !ValidWorkloadStatus(info.Status) {
		return errors.NotValidf("workload status %q", info.Status)
	}
	return nil
}

// String returns the status and message in the form shown by juju status.
func (info StatusInfo) String() string {
	if info.Message == "" {
		return info.Status.String()
	}
	return fmt.Sprintf("%s: %s", info.Status, info.Message)
}

// NewActive returns an active status with no message.
func NewActive() StatusInfo {
	return StatusInfo{Status: Active}
}

// NewWaiting returns a waiting status with the given reason.
func NewWaiting(reason string) StatusInfo {
	return StatusInfo{Status: Waiting, Message: reason}
}

// NewBlocked returns a blocked status with the given reason.
func NewBlocked(reason string) StatusInfo {
	return StatusInfo{Status: Blocked, Message: reason}
}

// NewMaintenance returns a maintenance status with the given reason.
func NewMaintenance(reason string) StatusInfo {
	return StatusInfo{Status: Maintenance, Message: reason}
}

// StatusSetter represents a type whose workload status can be set.
type StatusSetter interface {
	SetStatus(StatusInfo) error
}
