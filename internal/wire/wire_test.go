package wire

import (
	"bytes"
	"io"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	tests := []Event{
		{Name: "a.log", Location: "/var/log", Description: "hello"},
		{Name: "", Location: "", Description: ""},
		{Name: "x", Location: "/tmp/t", Description: "y\nz"},
		{Name: "app.log", Location: "/var/log", Description: "unicode: héllo wörld 日本語"},
	}

	for _, event := range tests {
		var buffer bytes.Buffer
		if err := Encode(&buffer, event); err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		decoder := NewDecoder(&buffer)
		decoded, err := decoder.Decode()
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if decoded != event {
			t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, event)
		}
	}
}

func TestMarshalMatchesEncode(t *testing.T) {
	event := Event{Name: "a.log", Location: "/var/log", Description: "hello"}

	var buffer bytes.Buffer
	if err := Encode(&buffer, event); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if !bytes.Equal(buffer.Bytes(), Marshal(event)) {
		t.Fatalf("Marshal output diverges from Encode output")
	}
}

func TestDecodeStreamOfRecords(t *testing.T) {
	events := []Event{
		{Name: "a.log", Location: "/var/log", Description: "first"},
		{Name: "b.log", Location: "/var/log", Description: "second"},
	}

	var buffer bytes.Buffer
	for _, event := range events {
		if err := Encode(&buffer, event); err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range events {
		got, err := decoder.Decode()
		if err != nil {
			t.Fatalf("Decode %d failed: %v", i, err)
		}
		if got != want {
			t.Fatalf("event %d mismatch: got %+v, want %+v", i, got, want)
		}
	}

	if _, err := decoder.Decode(); err != io.EOF {
		t.Fatalf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestDecodeTruncatedStreamFails(t *testing.T) {
	buffer := bytes.NewBufferString("a.log\x00/var/log\x00incomplete")
	decoder := NewDecoder(buffer)
	if _, err := decoder.Decode(); err == nil {
		t.Fatal("expected an error decoding a truncated record")
	}
}
