package store

import (
	"errors"
	"testing"
)

func TestTargetNotFoundIsInvalidTarget(t *testing.T) {
	if !errors.Is(ErrTargetNotFound, ErrInvalidTarget) {
		t.Fatalf("Expected ErrTargetNotFound to match ErrInvalidTarget")
	}
	if errors.Is(ErrInvalidTarget, ErrTargetNotFound) {
		t.Errorf("Expected plain ErrInvalidTarget not to match ErrTargetNotFound")
	}
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrUserNotFound, ErrDuplicateUser, ErrDuplicateTransaction,
		ErrConcurrentModification, ErrInsufficientFunds, ErrAlreadySettled,
		ErrAlreadyReviewed, ErrDuplicatePending, ErrInvalidTarget, ErrBalanceMismatch,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("Expected %q and %q to be distinct", a, b)
			}
		}
	}

	// Ensure the interface is usable as a type.
	var _ LedgerStore
}
