package engine

import (
	"encoding/binary"
	"fmt"
)

// TexFormat is the pixel-format enum stored in a .tex container header.
type TexFormat uint32

const (
	FormatA8R8G8B8 TexFormat = 0x1450
	FormatA16B16G16R16F TexFormat = 0x2460
	FormatA32B32G32R32F TexFormat = 0x2470
	FormatBC1 TexFormat = 0x3420
	FormatBC2 TexFormat = 0x3430
	FormatBC3 TexFormat = 0x3431
	FormatBC5 TexFormat = 0x6230
	FormatBC7 TexFormat = 0x6432
)

// texHeaderSize is the fixed, bit-exact size of the .tex container header:
// flags, format, width, height, depth, mip levels, LOD offsets (3 u32), and
// the mip-offset table (13 u32 slots reserved, only mipLevels used).
const texHeaderSize = 80

// TexHeader is the decoded fixed-size header preceding the pixel payload.
type TexHeader struct {
	Flags      uint32
	Format     TexFormat
	Width      uint16
	Height     uint16
	Depth      uint16
	MipLevels  uint16
	LODs       [3]uint32
	MipOffsets [13]uint32
}

// DecodedTexture is a texture lowered to straight RGBA8, mip 0 only.
type DecodedTexture struct {
	Width  int
	Height int
	Depth  int
	Pixels []byte // width*height*depth*4, RGBA8 straight alpha
}

// DecodeTex parses a .tex container and lowers mip 0 to RGBA8. Higher mips,
// if present, are discarded: composition only ever operates on mip 0.
func DecodeTex(data []byte) (*DecodedTexture, error) {
	if len(data) < texHeaderSize {
		return nil, fmt.Errorf("decoding tex header: need %d bytes, got %d", texHeaderSize, len(data))
	}

	h, err := parseTexHeader(data)
	if err != nil {
		return nil, err
	}

	w, ht, d := int(h.Width), int(h.Height), int(h.Depth)
	if d == 0 {
		d = 1
	}

	mip0Off := int(texHeaderSize)
	if h.MipLevels > 0 && h.MipOffsets[0] != 0 {
		mip0Off = int(h.MipOffsets[0])
	}

	var rgba []byte
	switch h.Format {
	case FormatA8R8G8B8:
		rgba, err = decodeA8R8G8B8(data[mip0Off:], w, ht, d)
	case FormatA16B16G16R16F:
		rgba, err = decodeA16B16G16R16F(data[mip0Off:], w, ht, d)
	case FormatA32B32G32R32F:
		rgba, err = decodeA32B32G32R32F(data[mip0Off:], w, ht, d)
	case FormatBC1:
		rgba, err = decodeBC1(data[mip0Off:], w, ht, d)
	case FormatBC2:
		rgba, err = decodeBC2(data[mip0Off:], w, ht, d)
	case FormatBC3:
		rgba, err = decodeBC3(data[mip0Off:], w, ht, d)
	case FormatBC5:
		rgba, err = decodeBC5(data[mip0Off:], w, ht, d)
	case FormatBC7:
		rgba, err = decodeBC7(data[mip0Off:], w, ht, d)
	default:
		return nil, fmt.Errorf("decoding tex: unsupported format 0x%x", uint32(h.Format))
	}
	if err != nil {
		return nil, fmt.Errorf("decoding tex payload: %w", err)
	}

	return &DecodedTexture{Width: w, Height: ht, Depth: d, Pixels: rgba}, nil
}

func parseTexHeader(data []byte) (*TexHeader, error) {
	h := &TexHeader{}
	h.Flags = binary.LittleEndian.Uint32(data[0:4])
	h.Format = TexFormat(binary.LittleEndian.Uint32(data[4:8]))
	h.Width = binary.LittleEndian.Uint16(data[8:10])
	h.Height = binary.LittleEndian.Uint16(data[10:12])
	h.Depth = binary.LittleEndian.Uint16(data[12:14])
	h.MipLevels = binary.LittleEndian.Uint16(data[14:16])
	for i := 0; i < 3; i++ {
		h.LODs[i] = binary.LittleEndian.Uint32(data[16+4*i : 20+4*i])
	}
	for i := 0; i < 13; i++ {
		off := 28 + 4*i
		if off+4 > texHeaderSize {
			break
		}
		h.MipOffsets[i] = binary.LittleEndian.Uint32(data[off : off+4])
	}
	return h, nil
}

// mipOffset computes the byte offset of mip level m (m >= 1) within the
// block-compressed payload, per the bit-exact formula carried from the
// original container format: 80 + w*h*d*(8^m - 1)/(7*8^(m-1)).
func mipOffset(w, h, d, m int) uint32 {
	if m == 0 {
		return texHeaderSize
	}
	pow8m := int64(1)
	for i := 0; i < m; i++ {
		pow8m *= 8
	}
	pow8m1 := pow8m / 8
	num := int64(w) * int64(h) * int64(d) * (pow8m - 1)
	den := int64(7) * pow8m1
	return uint32(texHeaderSize) + uint32(num/den)
}

// EncodeTex builds a valid .tex container from raw RGBA8 pixels. The
// encoder always emits a single mip level and the canonical LOD table
// [0,1,2], regardless of the source image's actual detail.
func EncodeTex(width, height, depth int, rgba []byte, format TexFormat) ([]byte, error) {
	if depth == 0 {
		depth = 1
	}
	if len(rgba) != width*height*depth*4 {
		return nil, fmt.Errorf("encoding tex: rgba buffer is %d bytes, want %d", len(rgba), width*height*depth*4)
	}

	var payload []byte
	var err error
	switch format {
	case FormatA8R8G8B8:
		payload = encodeA8R8G8B8(rgba)
	case FormatBC1:
		payload, err = encodeBC1(rgba, width, height, depth)
	case FormatBC2:
		payload, err = encodeBC2(rgba, width, height, depth)
	case FormatBC3:
		payload, err = encodeBC3(rgba, width, height, depth)
	case FormatBC5:
		payload, err = encodeBC5(rgba, width, height, depth)
	case FormatBC7:
		payload, err = encodeBC7(rgba, width, height, depth)
	default:
		return nil, fmt.Errorf("encoding tex: unsupported format 0x%x", uint32(format))
	}
	if err != nil {
		return nil, fmt.Errorf("encoding tex payload: %w", err)
	}

	buf := make([]byte, texHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], 0)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(format))
	binary.LittleEndian.PutUint16(buf[8:10], uint16(width))
	binary.LittleEndian.PutUint16(buf[10:12], uint16(height))
	binary.LittleEndian.PutUint16(buf[12:14], uint16(depth))
	binary.LittleEndian.PutUint16(buf[14:16], 1) // mip levels

	lods := [3]uint32{0, 1, 2}
	for i, v := range lods {
		binary.LittleEndian.PutUint32(buf[16+4*i:20+4*i], v)
	}
	binary.LittleEndian.PutUint32(buf[28:32], texHeaderSize)

	copy(buf[texHeaderSize:], payload)
	return buf, nil
}

func decodeA8R8G8B8(data []byte, w, h, d int) ([]byte, error) {
	n := w * h * d * 4
	if len(data) < n {
		return nil, fmt.Errorf("A8R8G8B8 payload too short: need %d, got %d", n, len(data))
	}
	out := make([]byte, n)
	for i := 0; i < n; i += 4 {
		a, r, g, b := data[i], data[i+1], data[i+2], data[i+3]
		out[i+0], out[i+1], out[i+2], out[i+3] = r, g, b, a
	}
	return out, nil
}

func encodeA8R8G8B8(rgba []byte) []byte {
	out := make([]byte, len(rgba))
	for i := 0; i+3 < len(rgba); i += 4 {
		r, g, b, a := rgba[i], rgba[i+1], rgba[i+2], rgba[i+3]
		out[i+0], out[i+1], out[i+2], out[i+3] = a, r, g, b
	}
	return out
}
