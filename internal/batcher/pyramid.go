package batcher

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/MeKo-Tech/rcnneval/internal/blob"
	"github.com/MeKo-Tech/rcnneval/internal/mempool"
	"github.com/disintegration/imaging"
)

// ErrNoScales is returned when a pyramid is requested without any positive scale.
var ErrNoScales = errors.New("no pyramid scales configured")

// ImagePyramid resizes the mean-subtracted image once per scale and stacks the
// levels into one [L, 3, H, W] blob padded to the largest level. Smaller levels
// sit in the top-left corner with zeros elsewhere. The returned factors are the
// scales actually used, one per level.
func ImagePyramid(img image.Image, cfg Config) (blob.Tensor, []float64, error) {
	if img == nil {
		return blob.Tensor{}, nil, errors.New("input image is nil")
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return blob.Tensor{}, nil, fmt.Errorf("invalid image size %dx%d", bounds.Dx(), bounds.Dy())
	}

	type level struct {
		data []float32
		w, h int
	}
	var levels []level
	var factors []float64
	maxW, maxH := 0, 0
	defer func() {
		for _, l := range levels {
			mempool.PutFloat32(l.data)
		}
	}()

	for _, s := range cfg.Scales {
		if s <= 0 {
			continue
		}
		w := int(math.Round(float64(bounds.Dx()) * s))
		h := int(math.Round(float64(bounds.Dy()) * s))
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		resized := imaging.Resize(img, w, h, imaging.Linear)
		data := mempool.GetFloat32(3 * w * h)
		fillCHW(data, resized, cfg.PixelMeans)
		levels = append(levels, level{data: data, w: w, h: h})
		factors = append(factors, s)
		maxW = max(maxW, w)
		maxH = max(maxH, h)
	}
	if len(levels) == 0 {
		return blob.Tensor{}, nil, ErrNoScales
	}

	plane := maxW * maxH
	out := make([]float32, len(levels)*3*plane)
	for i, l := range levels {
		base := i * 3 * plane
		for c := range 3 {
			for y := range l.h {
				src := l.data[c*l.w*l.h+y*l.w : c*l.w*l.h+(y+1)*l.w]
				dst := out[base+c*plane+y*maxW:]
				copy(dst[:l.w], src)
			}
		}
	}
	t, err := blob.NewTensor(out, int64(len(levels)), 3, int64(maxH), int64(maxW))
	if err != nil {
		return blob.Tensor{}, nil, err
	}
	return t, factors, nil
}

// fillCHW writes the image into dst as BGR planes with the means subtracted.
func fillCHW(dst []float32, img *image.NRGBA, means [3]float64) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	for y := range h {
		row := img.Pix[y*img.Stride : y*img.Stride+4*w]
		for x := range w {
			r, g, bl := row[4*x], row[4*x+1], row[4*x+2]
			i := y*w + x
			dst[i] = float32(float64(bl) - means[0])
			dst[plane+i] = float32(float64(g) - means[1])
			dst[2*plane+i] = float32(float64(r) - means[2])
		}
	}
}
