package engine

import (
	"bytes"
	"testing"
)

func solidRGBA(w, h int, r, g, b, a byte) []byte {
	out := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		out[i*4+0], out[i*4+1], out[i*4+2], out[i*4+3] = r, g, b, a
	}
	return out
}

func TestEncodeDecodeRoundTrip_A8R8G8B8(t *testing.T) {
	rgba := solidRGBA(4, 4, 10, 20, 30, 255)
	data, err := EncodeTex(4, 4, 1, rgba, FormatA8R8G8B8)
	if err != nil {
		t.Fatalf("EncodeTex() error: %v", err)
	}

	dec, err := DecodeTex(data)
	if err != nil {
		t.Fatalf("DecodeTex() error: %v", err)
	}
	if dec.Width != 4 || dec.Height != 4 {
		t.Fatalf("dims = %dx%d, want 4x4", dec.Width, dec.Height)
	}
	if !bytes.Equal(dec.Pixels, rgba) {
		t.Errorf("A8R8G8B8 round trip not bit-exact:\n got  %v\n want %v", dec.Pixels, rgba)
	}
}

func TestEncodeDecodeRoundTrip_BC1_SolidColor(t *testing.T) {
	rgba := solidRGBA(4, 4, 200, 50, 10, 255)
	data, err := EncodeTex(4, 4, 1, rgba, FormatBC1)
	if err != nil {
		t.Fatalf("EncodeTex(BC1) error: %v", err)
	}

	dec, err := DecodeTex(data)
	if err != nil {
		t.Fatalf("DecodeTex(BC1) error: %v", err)
	}
	for i := 0; i < len(dec.Pixels); i += 4 {
		if dec.Pixels[i+3] != 255 {
			t.Fatalf("pixel %d alpha = %d, want 255 (opaque solid block)", i/4, dec.Pixels[i+3])
		}
	}
}

func TestEncodeDecodeRoundTrip_BC3_Alpha(t *testing.T) {
	rgba := make([]byte, 4*4*4)
	for i := 0; i < 16; i++ {
		rgba[i*4+0] = 100
		rgba[i*4+1] = 150
		rgba[i*4+2] = 200
		rgba[i*4+3] = byte(i * 16)
	}
	data, err := EncodeTex(4, 4, 1, rgba, FormatBC3)
	if err != nil {
		t.Fatalf("EncodeTex(BC3) error: %v", err)
	}
	dec, err := DecodeTex(data)
	if err != nil {
		t.Fatalf("DecodeTex(BC3) error: %v", err)
	}
	if len(dec.Pixels) != len(rgba) {
		t.Fatalf("decoded length = %d, want %d", len(dec.Pixels), len(rgba))
	}
}

func TestMipOffsetFormula(t *testing.T) {
	// mip 1 offset for a 256x256 texture should sit right after mip 0's payload.
	w, h, d := 256, 256, 1
	got := mipOffset(w, h, d, 1)
	want := uint32(texHeaderSize) + uint32(w*h*d)
	if got != want {
		t.Errorf("mipOffset(m=1) = %d, want %d", got, want)
	}
}

func TestDecodeTex_UnsupportedFormat(t *testing.T) {
	header := make([]byte, texHeaderSize)
	header[4] = 0xff
	header[5] = 0xff
	if _, err := DecodeTex(header); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestDecodeTex_TooShort(t *testing.T) {
	if _, err := DecodeTex(make([]byte, 10)); err == nil {
		t.Error("expected error for truncated header")
	}
}

func TestHalf2Float(t *testing.T) {
	tests := []struct {
		bits uint16
		want float32
	}{
		{0x0000, 0.0},
		{0x3C00, 1.0},
		{0xBC00, -1.0},
		{0x4000, 2.0},
	}
	for _, tt := range tests {
		if got := half2float(tt.bits); got != tt.want {
			t.Errorf("half2float(0x%04x) = %v, want %v", tt.bits, got, tt.want)
		}
	}
}
