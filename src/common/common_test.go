package common

import (
	"errors"
	"testing"
)

func TestIsStore(t *testing.T) {
	err := NewStoreErr("TxSet", KeyNotFound, "0XAB")

	if !IsStore(err, KeyNotFound) {
		t.Fatalf("%v should be a KeyNotFound StoreErr", err)
	}
	if IsStore(err, KeyAlreadyExists) {
		t.Fatalf("%v should not be a KeyAlreadyExists StoreErr", err)
	}
	if IsStore(errors.New("Not Found"), KeyNotFound) {
		t.Fatalf("plain errors are not StoreErrs")
	}
	if err.Error() != "TxSet, 0XAB, Not Found" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestHexRoundTrip(t *testing.T) {
	data := []byte{0xde, 0xad, 0xbe, 0xef}

	s := EncodeToString(data)
	if s != "0XDEADBEEF" {
		t.Fatalf("EncodeToString should be 0XDEADBEEF, not %s", s)
	}

	back, err := DecodeFromString(s)
	if err != nil {
		t.Fatal(err)
	}
	if string(back) != string(data) {
		t.Fatalf("decoded %x, expected %x", back, data)
	}

	if _, err := DecodeFromString("deadbeef"); err == nil {
		t.Fatalf("a string without prefix should not decode")
	}
}
