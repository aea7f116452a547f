package well

import (
	"image"
	"sync"

	"github.com/montanaflynn/stats"

	"plate-reader/internal/assay"
	"plate-reader/pkg/colorutil"
	"plate-reader/pkg/geometry"
)

// SampleGrid computes a color sample for every slot. Slots are independent
// given the finalized grid, so sampling fans out across goroutines; the
// grid is never written after this point.
func SampleGrid(img image.Image, grid *Grid, p SampleParams) [assay.Rows][assay.Cols]ColorSample {
	var samples [assay.Rows][assay.Cols]ColorSample
	var wg sync.WaitGroup

	for r := 0; r < assay.Rows; r++ {
		for c := 0; c < assay.Cols; c++ {
			wg.Add(1)
			go func(row, col int) {
				defer wg.Done()
				samples[row][col] = SampleSlot(img, grid.Slots[row][col], p)
			}(r, c)
		}
	}

	wg.Wait()
	return samples
}

// SampleSlot computes robust color statistics over the valid pixels inside
// the slot's sampling mask. The mask is a circle of MaskRadiusFraction ×
// slot radius; pixels are additionally required to sit below the specular
// brightness threshold and above the saturation noise floor. If fewer than
// MinValidPixels pass, the validity predicates are relaxed so that every
// well still yields a sample. Degenerate crops produce a zero-valued sample
// with PixelCount 0 rather than failing.
func SampleSlot(img image.Image, slot Slot, p SampleParams) ColorSample {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	r := int(slot.Radius + 0.5)
	cx, cy := int(slot.Center.X+0.5), int(slot.Center.Y+0.5)

	crop := geometry.RectInt{X: cx - r, Y: cy - r, Width: 2 * r, Height: 2 * r}.Clamp(w, h)
	if crop.Width < p.MinCropSize || crop.Height < p.MinCropSize {
		return ColorSample{}
	}

	maskR := slot.Radius * p.MaskRadiusFraction
	maskR2 := maskR * maskR

	type pixel struct {
		h, s, v, r, g, b float64
	}
	var valid, masked []pixel

	for y := crop.Y; y < crop.Y+crop.Height; y++ {
		for x := crop.X; x < crop.X+crop.Width; x++ {
			dx := float64(x) - slot.Center.X
			dy := float64(y) - slot.Center.Y
			if dx*dx+dy*dy > maskR2 {
				continue
			}
			pr, pg, pb, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			rf, gf, bf := float64(pr>>8), float64(pg>>8), float64(pb>>8)
			hf, sf, vf := colorutil.RGBToHSV(rf, gf, bf)

			px := pixel{h: hf, s: sf, v: vf, r: rf, g: gf, b: bf}
			masked = append(masked, px)
			if vf < p.SpecularVThreshold && sf > p.MinSaturation {
				valid = append(valid, px)
			}
		}
	}

	pixels := valid
	if len(pixels) < p.MinValidPixels {
		pixels = masked
	}
	if len(pixels) == 0 {
		return ColorSample{}
	}

	hs := make([]float64, len(pixels))
	ss := make([]float64, len(pixels))
	vs := make([]float64, len(pixels))
	rs := make([]float64, len(pixels))
	gs := make([]float64, len(pixels))
	bs := make([]float64, len(pixels))
	for i, px := range pixels {
		hs[i] = px.h
		ss[i] = px.s
		vs[i] = px.v
		rs[i] = px.r
		gs[i] = px.g
		bs[i] = px.b
	}

	sMed, _ := stats.Median(ss)
	vMed, _ := stats.Median(vs)
	sMean, _ := stats.Mean(ss)
	vMean, _ := stats.Mean(vs)
	rMean, _ := stats.Mean(rs)
	gMean, _ := stats.Mean(gs)
	bMean, _ := stats.Mean(bs)

	return ColorSample{
		HSVMedian: colorutil.HSV{
			H: colorutil.CircularMedianHue(hs),
			S: sMed,
			V: vMed,
		},
		HSVMean: colorutil.HSV{
			H: colorutil.CircularMeanHue(hs),
			S: sMean,
			V: vMean,
		},
		RGBMean:    [3]float64{rMean, gMean, bMean},
		PixelCount: len(pixels),
	}
}
