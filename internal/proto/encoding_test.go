package proto

import "testing"

func TestEncodingRoundTrip(t *testing.T) {
	for i := ZInt(0); i < 20; i++ {
		mime, err := ToMime(i)
		if err != nil {
			t.Fatalf("ToMime(%d) failed: %v", i, err)
		}
		back, err := EncodingFromString(mime)
		if err != nil {
			t.Fatalf("EncodingFromString(%q) failed: %v", mime, err)
		}
		if back != i {
			t.Errorf("round trip of %d through %q = %d", i, mime, back)
		}
	}
}

func TestEncodingUnknownID(t *testing.T) {
	if _, err := ToMime(20); err == nil {
		t.Error("ToMime(20) should fail")
	}
	if _, err := ToMime(1000); err == nil {
		t.Error("ToMime(1000) should fail")
	}
}

func TestEncodingFromStringParameters(t *testing.T) {
	i, err := EncodingFromString("text/plain;charset=utf-8")
	if err != nil {
		t.Fatalf("EncodingFromString with parameters failed: %v", err)
	}
	if i != EncTextPlain {
		t.Errorf("got %d, want %d", i, EncTextPlain)
	}
}

func TestEncodingFromStringUnknown(t *testing.T) {
	if _, err := EncodingFromString("application/unknown"); err == nil {
		t.Error("unknown encoding should be rejected")
	}
}

func TestEncodingDefault(t *testing.T) {
	if EncDefault != EncAppOctetStream {
		t.Error("default encoding must be octet-stream")
	}
}

func TestDataKindString(t *testing.T) {
	tests := []struct {
		kind ZInt
		want string
	}{
		{KindPut, "PUT"},
		{KindPatch, "PATCH"},
		{KindDelete, "DELETE"},
		{42, "42"},
	}
	for _, tt := range tests {
		if got := DataKindString(tt.kind); got != tt.want {
			t.Errorf("DataKindString(%d) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
