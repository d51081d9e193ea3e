package texconv

import (
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestBLPEncodeLayout(t *testing.T) {
	img := Solid(64, 32, color.NRGBA{R: 10, G: 20, B: 30, A: 200})

	data, err := BLP{}.Encode(img)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if string(data[:4]) != "BLP2" {
		t.Errorf("expected magic BLP2, got %q", data[:4])
	}
	if want := blpHeaderSize + 64*32*4; len(data) != want {
		t.Fatalf("expected %d bytes, got %d", want, len(data))
	}
	if w := binary.LittleEndian.Uint32(data[12:]); w != 64 {
		t.Errorf("expected width 64, got %d", w)
	}
	if h := binary.LittleEndian.Uint32(data[16:]); h != 32 {
		t.Errorf("expected height 32, got %d", h)
	}
	if off := binary.LittleEndian.Uint32(data[20:]); off != 1172 {
		t.Errorf("expected mip 0 at offset 1172, got %d", off)
	}
	for i, b := range data[148:1172] {
		if b != 0 {
			t.Fatalf("palette byte %d is %d, want 0", i, b)
		}
	}
	// First pixel stored as BGRA
	px := data[1172:]
	if px[0] != 30 || px[1] != 20 || px[2] != 10 || px[3] != 200 {
		t.Errorf("expected BGRA 30,20,10,200, got %v", px[:4])
	}
}

func TestBLPRoundTrip(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 60), G: uint8(y * 60), B: 7, A: 255})
		}
	}

	data, err := BLP{}.Encode(src)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeBLP(data)
	if err != nil {
		t.Fatalf("DecodeBLP: %v", err)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if got.NRGBAAt(x, y) != src.NRGBAAt(x, y) {
				t.Errorf("pixel (%d,%d): got %v, want %v", x, y, got.NRGBAAt(x, y), src.NRGBAAt(x, y))
			}
		}
	}
}

func TestBLPResamplesToPowerOfTwo(t *testing.T) {
	data, err := BLP{}.Encode(Solid(100, 3, color.White))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	img, err := DecodeBLP(data)
	if err != nil {
		t.Fatalf("DecodeBLP: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 128 || b.Dy() != 4 {
		t.Errorf("expected 128x4, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestBLPEncodeEmpty(t *testing.T) {
	_, err := BLP{}.Encode(image.NewNRGBA(image.Rectangle{}))
	if !errors.Is(err, ErrInvalidBLP) {
		t.Errorf("expected ErrInvalidBLP, got %v", err)
	}
}

func TestDecodeBLPInvalid(t *testing.T) {
	good, _ := BLP{}.Encode(Solid(2, 2, color.Black))

	tests := []struct {
		name string
		data []byte
	}{
		{"short", good[:20]},
		{"magic", append([]byte("BLP1"), good[4:]...)},
		{"truncated pixels", good[:len(good)-1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeBLP(tt.data); !errors.Is(err, ErrInvalidBLP) {
				t.Errorf("expected ErrInvalidBLP, got %v", err)
			}
		})
	}
}

func TestExternalUnavailable(t *testing.T) {
	ext := &External{Tool: "forge-no-such-converter"}

	if err := ext.Available(); !errors.Is(err, ErrConverterUnavailable) {
		t.Errorf("expected ErrConverterUnavailable, got %v", err)
	}
	if _, err := ext.Encode(Solid(1, 1, color.Black)); !errors.Is(err, ErrConverterUnavailable) {
		t.Errorf("expected ErrConverterUnavailable from Encode, got %v", err)
	}
}

func TestSelect(t *testing.T) {
	if _, ok := Select("", nil).(BLP); !ok {
		t.Error("expected built-in encoder when no converter configured")
	}
	if _, ok := Select("forge-no-such-converter", nil).(BLP); !ok {
		t.Error("expected fallback to built-in encoder when converter missing")
	}
}
