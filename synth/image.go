package synth

import (
	"image"
	"image/color"
	"io"

	// registered formats for image.Decode; png is what the corpus
	// conversion scripts emit
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// ReadImage converts a decodable raster image into a Source on the
// 8-bit luminance range [0, 255].
func ReadImage(r io.Reader) (Source, error) {
	var src Source
	img, _, err := image.Decode(r)
	if err != nil {
		return src, err
	}
	return FromImage(img), nil
}

// FromImage converts an in-memory image to a luminance Source.
func FromImage(img image.Image) Source {
	b := img.Bounds()
	grid := make([][]float64, b.Dy())
	for y := 0; y < b.Dy(); y++ {
		row := make([]float64, b.Dx())
		for x := 0; x < b.Dx(); x++ {
			g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			row[x] = float64(g.Y)
		}
		grid[y] = row
	}
	return Source{Grid: grid, Lo: 0, Hi: 255}
}
