package engine

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
)

// RawImage is a decoded RGBA8 buffer with straight alpha, the common
// currency between .tex, PNG, and DDS for the CLI's convert/extract
// surface.
type RawImage struct {
	Width  int
	Height int
	Pixels []byte // len = Width*Height*4, RGBA byte order
}

// DecodePNG decodes a PNG into a RawImage, converting to RGBA8 if needed.
func DecodePNG(data []byte) (*RawImage, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding png: %w", err)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			nrgba.Set(x, y, img.At(bounds.Min.X+x, bounds.Min.Y+y))
		}
	}
	return &RawImage{Width: w, Height: h, Pixels: nrgba.Pix}, nil
}

// EncodePNG encodes a RawImage as PNG bytes.
func EncodePNG(img *RawImage) ([]byte, error) {
	nrgba := &image.NRGBA{Pix: img.Pixels, Stride: img.Width * 4, Rect: image.Rect(0, 0, img.Width, img.Height)}
	var buf bytes.Buffer
	if err := png.Encode(&buf, nrgba); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// ddsMagic is the four-byte "DDS " file magic.
var ddsMagic = [4]byte{'D', 'D', 'S', ' '}

// ddsPixelFormat mirrors DDS_PIXELFORMAT (32 bytes).
type ddsPixelFormat struct {
	Size        uint32
	Flags       uint32
	FourCC      [4]byte
	RGBBitCount uint32
	RBitMask    uint32
	GBitMask    uint32
	BBitMask    uint32
	ABitMask    uint32
}

// ddsHeader mirrors DDS_HEADER (124 bytes after the magic).
type ddsHeader struct {
	Size              uint32
	Flags             uint32
	Height            uint32
	Width             uint32
	PitchOrLinearSize uint32
	Depth             uint32
	MipMapCount       uint32
	Reserved1         [11]uint32
	PixelFormat       ddsPixelFormat
	Caps              uint32
	Caps2             uint32
	Caps3             uint32
	Caps4             uint32
	Reserved2         uint32
}

const ddsFourCCPixelFormat = 0x4

// DecodeDDS decodes the first mip of an uncompressed, DXT1, DXT3, or DXT5
// DDS image into a RawImage. Per the CLI's decode-only DDS support, there
// is no corresponding EncodeDDS: producing an encoder-grade BC7 writer is
// out of scope, mirroring TextureCodec's own non-goal for general-purpose
// texture tooling.
func DecodeDDS(data []byte) (*RawImage, error) {
	if len(data) < 4+128 || [4]byte{data[0], data[1], data[2], data[3]} != ddsMagic {
		return nil, fmt.Errorf("decoding dds: bad magic")
	}
	var hdr ddsHeader
	if err := binary.Read(bytes.NewReader(data[4:4+124]), binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("decoding dds header: %w", err)
	}

	w, h := int(hdr.Width), int(hdr.Height)
	body := data[4+128:]

	if hdr.PixelFormat.Flags&ddsFourCCPixelFormat != 0 {
		switch hdr.PixelFormat.FourCC {
		case [4]byte{'D', 'X', 'T', '1'}:
			pixels, err := decodeBC1(body, w, h, 1)
			return &RawImage{Width: w, Height: h, Pixels: pixels}, err
		case [4]byte{'D', 'X', 'T', '3'}:
			pixels, err := decodeBC2(body, w, h, 1)
			return &RawImage{Width: w, Height: h, Pixels: pixels}, err
		case [4]byte{'D', 'X', 'T', '5'}:
			pixels, err := decodeBC3(body, w, h, 1)
			return &RawImage{Width: w, Height: h, Pixels: pixels}, err
		default:
			return nil, fmt.Errorf("decoding dds: unsupported fourCC %q", hdr.PixelFormat.FourCC)
		}
	}

	// Uncompressed: assume 32bpp BGRA, the overwhelmingly common case.
	if hdr.PixelFormat.RGBBitCount != 32 {
		return nil, fmt.Errorf("decoding dds: unsupported bit count %d", hdr.PixelFormat.RGBBitCount)
	}
	pixels := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		b, g, r, a := body[i*4], body[i*4+1], body[i*4+2], body[i*4+3]
		pixels[i*4+0] = r
		pixels[i*4+1] = g
		pixels[i*4+2] = b
		pixels[i*4+3] = a
	}
	return &RawImage{Width: w, Height: h, Pixels: pixels}, nil
}
