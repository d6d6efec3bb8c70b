package syncerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	base := errors.New("database is locked")
	err := fmt.Errorf("find by code: %w", Transient("findByCode", base))

	if !IsTransient(err) {
		t.Fatalf("expected transient, got %v", KindOf(err))
	}
	if !errors.Is(err, base) {
		t.Fatal("expected chain to preserve cause")
	}
	if IsPermanent(err) || IsValidation(err) {
		t.Fatal("unexpected secondary classification")
	}
}

func TestNotFoundMatchesSentinel(t *testing.T) {
	err := NotFound("download", fmt.Errorf("object photos/A1.jpg missing"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("expected ErrNotFound match")
	}
	if !IsNotFound(NotFound("download", nil)) {
		t.Fatal("expected default not-found cause")
	}
	if IsNotFound(Permanent("upsert", errors.New("constraint"))) {
		t.Fatal("permanent error must not match not-found")
	}
}

func TestInvalidFieldIsValidation(t *testing.T) {
	err := fmt.Errorf("clear: %w", &InvalidFieldError{Field: "contentHash"})
	if !IsValidation(err) {
		t.Fatal("expected invalid field to classify as validation")
	}
	var fieldErr *InvalidFieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "contentHash" {
		t.Fatalf("expected InvalidFieldError, got %v", err)
	}
}

func TestNilWrapsToNil(t *testing.T) {
	if Transient("op", nil) != nil || Permanent("op", nil) != nil || Validation("op", nil) != nil {
		t.Fatal("wrapping nil should return nil")
	}
}
