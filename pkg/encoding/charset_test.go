package encoding

import (
	"errors"
	"testing"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name string
		want *Charset
	}{
		{"", Windows1252},
		{"windows-1252", Windows1252},
		{"CP1252", Windows1252},
		{"euc-kr", EUCKR},
		{"cp949", EUCKR},
	}
	for _, tt := range tests {
		got, err := Lookup(tt.name)
		if err != nil || got != tt.want {
			t.Errorf("Lookup(%q) = %v, %v", tt.name, got, err)
		}
	}
	if _, err := Lookup("klingon"); err == nil {
		t.Error("expected error for unknown charset")
	}
}

func TestClientPath(t *testing.T) {
	got, err := Windows1252.ClientPath("tileset/grass/grass01.blp")
	if err != nil {
		t.Fatalf("ClientPath: %v", err)
	}
	if got != `tileset\grass\grass01.blp` {
		t.Errorf("got %q", got)
	}
}

func TestEncodeWindows1252(t *testing.T) {
	got, err := Windows1252.Encode("Café")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got != "Caf\xe9" {
		t.Errorf("expected single-byte é, got %q", got)
	}
	if back := Windows1252.Decode(got); back != "Café" {
		t.Errorf("Decode = %q", back)
	}

	// Decomposed input is composed before encoding
	got, err = Windows1252.Encode("Cafe\u0301")
	if err != nil || got != "Caf\xe9" {
		t.Errorf("expected NFC composition, got %q, %v", got, err)
	}
}

func TestEncodeKorean(t *testing.T) {
	got, err := EUCKR.Encode("프론테라")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(got) != 8 {
		t.Errorf("expected 2 bytes per syllable, got %d bytes", len(got))
	}
	if back := EUCKR.Decode(got); back != "프론테라" {
		t.Errorf("Decode = %q", back)
	}
}

func TestEncodeUnrepresentable(t *testing.T) {
	if _, err := Windows1252.Encode("프론테라"); !errors.Is(err, ErrUnencodable) {
		t.Errorf("expected ErrUnencodable, got %v", err)
	}
	if _, err := Windows1252.Encode("bad\xff"); !errors.Is(err, ErrUnencodable) {
		t.Errorf("expected ErrUnencodable for invalid UTF-8, got %v", err)
	}
}
