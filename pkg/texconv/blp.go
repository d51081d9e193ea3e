package texconv

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// BLP2 layout constants.
const (
	blpMagic        = "BLP2"
	blpMipLevels    = 16
	blpMipTables    = 20 + blpMipLevels*4*2 // fixed fields, then mip offsets and sizes
	blpPaletteSize  = 256 * 4               // present even for raw BGRA
	blpHeaderSize   = blpMipTables + blpPaletteSize
	blpTypeDirect   = 1
	blpEncodingRaw  = 3 // uncompressed BGRA
	blpAlphaDepth   = 8
	blpAlphaTypeRaw = 8

	// MaxTextureSide is the largest side the encoder emits.
	MaxTextureSide = 1024
)

// BLP writes single-mip uncompressed BGRA BLP2 textures. Images whose sides
// are not powers of two are resampled up to the next power of two.
type BLP struct{}

// Encode implements Encoder.
func (BLP) Encode(img image.Image) ([]byte, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidBLP)
	}

	w, h := potSide(b.Dx()), potSide(b.Dy())
	src := toNRGBA(img, w, h)

	payload := w * h * 4
	out := make([]byte, blpHeaderSize+payload)
	copy(out, blpMagic)
	binary.LittleEndian.PutUint32(out[4:], blpTypeDirect)
	out[8] = blpEncodingRaw
	out[9] = blpAlphaDepth
	out[10] = blpAlphaTypeRaw
	out[11] = 0 // no mips
	binary.LittleEndian.PutUint32(out[12:], uint32(w))
	binary.LittleEndian.PutUint32(out[16:], uint32(h))
	binary.LittleEndian.PutUint32(out[20:], blpHeaderSize)
	binary.LittleEndian.PutUint32(out[20+blpMipLevels*4:], uint32(payload))

	px := out[blpHeaderSize:]
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < w; x++ {
			s := row[x*4 : x*4+4]
			d := px[(y*w+x)*4:]
			d[0], d[1], d[2], d[3] = s[2], s[1], s[0], s[3]
		}
	}
	return out, nil
}

// DecodeBLP decodes the first mip of an uncompressed BLP2 texture.
func DecodeBLP(data []byte) (*image.NRGBA, error) {
	if len(data) < blpHeaderSize {
		return nil, fmt.Errorf("%w: header truncated", ErrInvalidBLP)
	}
	if string(data[:4]) != blpMagic {
		return nil, fmt.Errorf("%w: magic %q", ErrInvalidBLP, data[:4])
	}
	if data[8] != blpEncodingRaw {
		return nil, fmt.Errorf("%w: unsupported encoding %d", ErrInvalidBLP, data[8])
	}

	w := int(binary.LittleEndian.Uint32(data[12:]))
	h := int(binary.LittleEndian.Uint32(data[16:]))
	off := int(binary.LittleEndian.Uint32(data[20:]))
	size := int(binary.LittleEndian.Uint32(data[20+blpMipLevels*4:]))
	if w <= 0 || h <= 0 || w > MaxTextureSide || h > MaxTextureSide || size != w*h*4 || off+size > len(data) {
		return nil, fmt.Errorf("%w: bad mip 0 (%dx%d, %d bytes at %d)", ErrInvalidBLP, w, h, size, off)
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	px := data[off : off+size]
	for i := 0; i < w*h; i++ {
		s := px[i*4:]
		img.Pix[i*4+0] = s[2]
		img.Pix[i*4+1] = s[1]
		img.Pix[i*4+2] = s[0]
		img.Pix[i*4+3] = s[3]
	}
	return img, nil
}

func potSide(n int) int {
	p := 1
	for p < n && p < MaxTextureSide {
		p <<= 1
	}
	return p
}

func toNRGBA(img image.Image, w, h int) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if b.Dx() == w && b.Dy() == h {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Solid returns a w×h image filled with c, used for placeholder textures.
func Solid(w, h int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	nc := color.NRGBAModel.Convert(c).(color.NRGBA)
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = nc.R, nc.G, nc.B, nc.A
	}
	return img
}
