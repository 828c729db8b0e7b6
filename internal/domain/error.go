package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed   = errors.New("request already processed")
	ErrSignatureInvalid   = errors.New("payment signature invalid")
	ErrNotRefundable      = errors.New("plan is not refundable")
	ErrDuplicateRequest   = errors.New("refund already requested for subscription")
	ErrNoCapturedPayment  = errors.New("no captured payment for subscription")
	ErrFeatureUnavailable = errors.New("feature not available on plan")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrLastActiveAdmin    = errors.New("cannot deactivate the last active admin")
	ErrSweepInProgress    = errors.New("reconciliation sweep already running")

	// Infra-level errors surfaced by repositories
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid transaction execution context")
)

// AdmissionConflictError is returned when an account already holds a
// subscription that blocks a new purchase. It carries enough detail for the
// client to render a specific call-to-action ("already active" vs "awaiting
// approval").
type AdmissionConflictError struct {
	SubscriptionID string
	Status         string
	PlanName       string
	EndDate        *time.Time
}

func (e *AdmissionConflictError) Error() string {
	return fmt.Sprintf("account already has a %s subscription on plan %q", e.Status, e.PlanName)
}
