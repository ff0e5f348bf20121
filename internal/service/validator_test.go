package service

import (
	"errors"
	"testing"

	"user-registry/internal/domain"
)

func TestValidateCreateReportsAllFields(t *testing.T) {
	v := NewValidator()

	err := v.ValidateCreate(CreateUserInput{Email: "not-an-email"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Fields) != 2 {
		t.Fatalf("expected 2 field errors, got %+v", verr.Fields)
	}
	if verr.Fields[0].Field != "username" || verr.Fields[1].Field != "email" {
		t.Fatalf("unexpected fields: %+v", verr.Fields)
	}
}

func TestValidateRejectsBlankUsername(t *testing.T) {
	v := NewValidator()

	for _, name := range []string{" ", "   ", "\t\n"} {
		var verr *domain.ValidationError
		err := v.ValidateCreate(CreateUserInput{Username: name, Email: "a@x.com"})
		if !errors.As(err, &verr) || len(verr.Fields) != 1 || verr.Fields[0].Field != "username" {
			t.Fatalf("create %q: expected username error, got %v", name, err)
		}
		if verr.Fields[0].Message != "must not be blank" {
			t.Fatalf("create %q: unexpected message %q", name, verr.Fields[0].Message)
		}

		blank := name
		err = v.ValidateUpdate(UpdateUserInput{Username: &blank})
		if !errors.As(err, &verr) || len(verr.Fields) != 1 || verr.Fields[0].Field != "username" {
			t.Fatalf("update %q: expected username error, got %v", name, err)
		}
	}
}

func TestValidateCreateAcceptsValidPayload(t *testing.T) {
	if err := NewValidator().ValidateCreate(CreateUserInput{Username: "alice", Email: "a@x.com"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateUpdate(t *testing.T) {
	v := NewValidator()
	bad := "nope"
	good := "b@x.com"
	empty := ""

	if err := v.ValidateUpdate(UpdateUserInput{}); err != nil {
		t.Fatalf("empty update is not a validation failure: %v", err)
	}
	if err := v.ValidateUpdate(UpdateUserInput{Email: &good}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var verr *domain.ValidationError
	if err := v.ValidateUpdate(UpdateUserInput{Email: &bad}); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Fields[0].Field != "email" {
		t.Fatalf("unexpected field: %+v", verr.Fields)
	}

	if err := v.ValidateUpdate(UpdateUserInput{Username: &empty, Email: &bad}); !errors.As(err, &verr) || len(verr.Fields) != 2 {
		t.Fatalf("expected 2 field errors, got %v", err)
	}
}
