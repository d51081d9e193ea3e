package project

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png" // PNG decoder registration
	"os"

	_ "golang.org/x/image/bmp"  // BMP decoder registration
	_ "golang.org/x/image/tiff" // TIFF decoder registration

	"github.com/Faultbox/midgard-forge/pkg/terrain"
)

// DecodeImage decodes a PNG, BMP or TIFF file.
func DecodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// heightmapFromImage reads a 129×129 grayscale image. Samples are normalized
// to [0, 1] at their native depth, multiplied by scale and shifted by offset.
func heightmapFromImage(img image.Image, scale, offset float32) (*terrain.Heightmap, error) {
	b := img.Bounds()
	if b.Dx() != terrain.HeightmapSize || b.Dy() != terrain.HeightmapSize {
		return nil, fmt.Errorf("%w: heightmap image is %dx%d, want %dx%d",
			terrain.ErrInputShape, b.Dx(), b.Dy(), terrain.HeightmapSize, terrain.HeightmapSize)
	}

	samples := make([]float32, terrain.HeightmapSize*terrain.HeightmapSize)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			samples[y*terrain.HeightmapSize+x] = offset + scale*level16(img, b.Min.X+x, b.Min.Y+y)
		}
	}
	return terrain.NewHeightmap(terrain.HeightmapSize, samples)
}

// level16 returns the 16-bit luminance of a pixel in [0, 1].
func level16(img image.Image, x, y int) float32 {
	switch g := img.(type) {
	case *image.Gray16:
		return float32(g.Gray16At(x, y).Y) / 0xffff
	case *image.Gray:
		return float32(g.GrayAt(x, y).Y) / 0xff
	}
	return float32(color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y) / 0xffff
}

// splatFromImage slices a tile-wide 1024×1024 alpha image into 256 sub-chunk
// alpha maps.
func splatFromImage(img image.Image) ([terrain.ChunkCount]terrain.AlphaMap, error) {
	b := img.Bounds()
	pixels := make([]byte, b.Dx()*b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			pixels[y*b.Dx()+x] = color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
		}
	}
	return terrain.SplitSplat(pixels, b.Dx(), b.Dy())
}
