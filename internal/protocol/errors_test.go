package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrBadVersion,
		ErrNotFound,
		ErrOutOfRange,
		ErrUnavailable,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestNewError(t *testing.T) {
	e := NewError(ErrNotFound, "no such food")
	if e.Type != TypeError || e.ProtocolVersion != Version || e.Code != ErrNotFound {
		t.Fatalf("unexpected error message: %+v", e)
	}
}

func TestCompatible(t *testing.T) {
	for _, v := range []string{"1.0", "1.0.0", "1.3", " 1.9.2 "} {
		if !Compatible(v) {
			t.Fatalf("expected %q compatible", v)
		}
	}
	for _, v := range []string{"", "0.9", "2.0", "banana"} {
		if Compatible(v) {
			t.Fatalf("expected %q incompatible", v)
		}
	}
	if !Newer("1.1") || Newer("1.0") {
		t.Fatalf("Newer misreports")
	}
}
