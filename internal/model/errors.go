package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/imamik/vnsync/internal/platform/contrail"
)

var (
	// ErrParentNotActive is returned by Update while a parent has not yet
	// reached the controller.
	ErrParentNotActive = errors.New("parent not active")

	// ErrCycle is returned by Graph.AddTo when an edge would close a cycle.
	ErrCycle = errors.New("dependency cycle")
)

// ValidationError reports a malformed local entity. It is not retried.
type ValidationError struct {
	Kind   contrail.Kind
	ID     string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %s: %s %s", e.Kind, e.ID, e.Field, e.Reason)
}

// IncompleteGraphError reports a model built without its required parents.
type IncompleteGraphError struct {
	Kind    contrail.Kind
	UUID    string
	Missing contrail.Kind
	Reason  string
}

func (e *IncompleteGraphError) Error() string {
	return fmt.Sprintf("incomplete graph for %s %s: %s parent %s", e.Kind, e.UUID, e.Missing, e.Reason)
}

// InvalidSubnetError reports an address outside its declared subnet.
type InvalidSubnetError struct {
	Kind    contrail.Kind
	UUID    string
	Address string
	CIDR    string
}

func (e *InvalidSubnetError) Error() string {
	return fmt.Sprintf("%s %s: address %s is outside %s", e.Kind, e.UUID, e.Address, e.CIDR)
}

// DependencyInUseError reports a delete blocked by live dependents. The
// object stays Stale and is retried by the next full-sync pass.
type DependencyInUseError struct {
	Kind       contrail.Kind
	UUID       string
	Dependents []string
	// Err is the controller error when the controller itself refused.
	Err error
}

func (e *DependencyInUseError) Error() string {
	msg := fmt.Sprintf("%s %s is in use", e.Kind, e.UUID)
	if len(e.Dependents) > 0 {
		msg += " by " + strings.Join(e.Dependents, ", ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DependencyInUseError) Unwrap() error {
	return e.Err
}

// IsDependencyInUse reports whether err is or wraps a DependencyInUseError.
func IsDependencyInUse(err error) bool {
	var target *DependencyInUseError
	return errors.As(err, &target)
}

// IsPermanent reports whether err will not clear up on a later pass without
// the local entity changing.
func IsPermanent(err error) bool {
	var (
		validation *ValidationError
		subnet     *InvalidSubnetError
		graph      *IncompleteGraphError
	)
	return errors.As(err, &validation) || errors.As(err, &subnet) ||
		errors.As(err, &graph) || errors.Is(err, ErrCycle)
}
