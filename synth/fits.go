package synth

import (
	"fmt"
	"io"

	"github.com/astrogo/fitsio"
)

// ReadFITS loads the first image HDU of a FITS stream into a Source.
// The intensity bounds are taken from the data extrema, since FITS
// carries no fixed sample range.  Only 2-D image HDUs are accepted.
func ReadFITS(r io.ReadSeeker) (Source, error) {
	var src Source
	f, err := fitsio.Open(r)
	if err != nil {
		return src, err
	}
	defer f.Close()
	hdu := f.HDU(0)
	img, ok := hdu.(fitsio.Image)
	if !ok {
		return src, fmt.Errorf("fits: primary HDU is not an image")
	}
	hdr := img.Header()
	axes := hdr.Axes()
	if len(axes) != 2 {
		return src, fmt.Errorf("fits: expected a 2-D image, got %d axes", len(axes))
	}
	cols, rows := axes[0], axes[1]
	flat, err := readPixels(img, hdr.Bitpix(), rows*cols)
	if err != nil {
		return src, err
	}

	src.Grid = make([][]float64, rows)
	lo, hi := flat[0], flat[0]
	for r := 0; r < rows; r++ {
		src.Grid[r] = flat[r*cols : (r+1)*cols]
		for _, v := range src.Grid[r] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	if hi == lo {
		// flat frame; widen so the affine map stays defined
		hi = lo + 1
	}
	src.Lo = lo
	src.Hi = hi
	return src, nil
}

func readPixels(img fitsio.Image, bitpix, n int) ([]float64, error) {
	out := make([]float64, n)
	switch bitpix {
	case 8:
		raw := make([]int8, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case 16:
		raw := make([]int16, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case 32:
		raw := make([]int32, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case -32:
		raw := make([]float32, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case -64:
		if err := img.Read(&out); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("fits: unsupported bitpix %d", bitpix)
	}
	return out, nil
}
