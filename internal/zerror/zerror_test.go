package zerror

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestErrorSimple(t *testing.T) {
	err := New(KindOther, "TEST")
	s := err.Error()
	if !strings.Contains(s, "TEST") {
		t.Errorf("rendered error %q does not contain the message", s)
	}
	if !strings.Contains(s, "zerror_test.go") {
		t.Errorf("rendered error %q does not contain the raise site", s)
	}
	if err.Kind() != KindOther {
		t.Errorf("Kind() = %v, want KindOther", err.Kind())
	}
}

func TestErrorOverflow(t *testing.T) {
	err := Overflow(3)
	if err.Missing() != 3 {
		t.Errorf("Missing() = %d, want 3", err.Missing())
	}
	if err.Kind() != KindBufferOverflow {
		t.Errorf("Kind() = %v, want KindBufferOverflow", err.Kind())
	}
	if !strings.Contains(err.Error(), "3 bytes") {
		t.Errorf("rendered error %q does not name the missing bytes", err.Error())
	}
}

func TestErrorWithSource(t *testing.T) {
	err1 := New(KindOther, "ERR1")
	err2 := Wrap(KindIO, "ERR2", err1)

	s := err2.Error()
	if !strings.Contains(s, "ERR1") {
		t.Errorf("rendered error %q does not contain the cause", s)
	}
	if !strings.Contains(s, "ERR2") {
		t.Errorf("rendered error %q does not contain the message", s)
	}
	if !errors.Is(err2, err1) {
		t.Error("errors.Is does not reach the cause")
	}
}

func TestErrorWithForeignSource(t *testing.T) {
	cause := errors.New("IOERR")
	err := Wrap(KindOther, "ERR2", cause)
	s := err.Error()
	if !strings.Contains(s, "IOERR") || !strings.Contains(s, "ERR2") {
		t.Errorf("rendered error %q does not contain both descriptions", s)
	}
}

func TestAuthentication(t *testing.T) {
	err := Authentication("usrpwd", "invalid credentials")
	if err.Authenticator() != "usrpwd" {
		t.Errorf("Authenticator() = %q, want usrpwd", err.Authenticator())
	}
	if !strings.Contains(err.Error(), "usrpwd") {
		t.Errorf("rendered error %q does not name the authenticator", err.Error())
	}
}

func TestIsKind(t *testing.T) {
	inner := New(KindSharedMemory, "segment gone")
	outer := Wrap(KindIO, "read failed", inner)
	if !IsKind(outer, KindIO) {
		t.Error("IsKind misses the outer kind")
	}
	if !IsKind(outer, KindSharedMemory) {
		t.Error("IsKind misses the wrapped kind")
	}
	if IsKind(outer, KindAuthentication) {
		t.Error("IsKind reports a kind that is not in the chain")
	}
	if IsKind(io.EOF, KindIO) {
		t.Error("IsKind reports a kind for a foreign error")
	}
}
