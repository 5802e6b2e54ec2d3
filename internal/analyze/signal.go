package analyze

import (
	"image"
	"math"
	"math/cmplx"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// raster is a decoded image as float planes in [0,255], row-major
type raster struct {
	w, h    int
	gray    []float64
	r, g, b []float64
}

func (p *raster) at(plane []float64, x, y int) float64 {
	return plane[y*p.w+x]
}

// newRaster converts img into float planes, downscaling so the longer side is at most maxSide
func newRaster(img image.Image, maxSide int) *raster {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide > 0 && (w > maxSide || h > maxSide) {
		if w >= h {
			h = int(math.Max(1, math.Round(float64(h)*float64(maxSide)/float64(w))))
			w = maxSide
		} else {
			w = int(math.Max(1, math.Round(float64(w)*float64(maxSide)/float64(h))))
			h = maxSide
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	}

	n := w * h
	p := &raster{
		w: w, h: h,
		gray: make([]float64, n),
		r:    make([]float64, n),
		g:    make([]float64, n),
		b:    make([]float64, n),
	}
	for i := 0; i < n; i++ {
		r := float64(dst.Pix[i*4])
		g := float64(dst.Pix[i*4+1])
		bl := float64(dst.Pix[i*4+2])
		p.r[i], p.g[i], p.b[i] = r, g, bl
		// ITU-R BT.601 luma
		p.gray[i] = 0.299*r + 0.587*g + 0.114*bl
	}
	return p
}

// resizePlane resamples a single plane to w x h with bilinear interpolation
func resizePlane(src []float64, sw, sh, w, h int) []float64 {
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)*float64(sh)/float64(h) - 0.5
		y0 := clampInt(int(math.Floor(fy)), 0, sh-1)
		y1 := clampInt(y0+1, 0, sh-1)
		ty := fy - math.Floor(fy)
		if fy < 0 {
			ty = 0
		}
		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)*float64(sw)/float64(w) - 0.5
			x0 := clampInt(int(math.Floor(fx)), 0, sw-1)
			x1 := clampInt(x0+1, 0, sw-1)
			tx := fx - math.Floor(fx)
			if fx < 0 {
				tx = 0
			}
			top := src[y0*sw+x0]*(1-tx) + src[y0*sw+x1]*tx
			bot := src[y1*sw+x0]*(1-tx) + src[y1*sw+x1]*tx
			out[y*w+x] = top*(1-ty) + bot*ty
		}
	}
	return out
}

// fft2Magnitude returns |FFT2(plane)| for a w x h plane
func fft2Magnitude(plane []float64, w, h int) []float64 {
	data := make([]complex128, w*h)
	for i, v := range plane {
		data[i] = complex(v, 0)
	}

	rowFFT := fourier.NewCmplxFFT(w)
	row := make([]complex128, w)
	for y := 0; y < h; y++ {
		rowFFT.Coefficients(row, data[y*w:(y+1)*w])
		copy(data[y*w:(y+1)*w], row)
	}

	colFFT := fourier.NewCmplxFFT(h)
	col := make([]complex128, h)
	out := make([]complex128, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = data[y*w+x]
		}
		colFFT.Coefficients(out, col)
		for y := 0; y < h; y++ {
			data[y*w+x] = out[y]
		}
	}

	mag := make([]float64, w*h)
	for i, c := range data {
		mag[i] = cmplx.Abs(c)
	}
	return mag
}

// spectrumMagnitude returns the one-sided magnitude spectrum of seq, zero padded to a power of two.
// binHz converts a bin index to Hz for the given sample rate.
func spectrumMagnitude(seq []float64, sampleRate int) (mag []float64, binHz float64) {
	n := nextPow2(len(seq))
	padded := make([]float64, n)
	copy(padded, seq)

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, padded)

	// Drop the Nyquist bin to match a half spectrum of n/2 bins
	half := n / 2
	mag = make([]float64, half)
	for i := 0; i < half; i++ {
		mag[i] = cmplx.Abs(coeffs[i])
	}
	return mag, float64(sampleRate) / float64(n)
}

// popVariance is the population variance (divide by n)
func popVariance(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.PopVariance(x, nil)
}

// mean of x, zero when empty
func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// gaussianKernel returns a normalized 1D Gaussian kernel of the given odd size
func gaussianKernel(size int, sigma float64) []float64 {
	k := make([]float64, size)
	half := size / 2
	sum := 0.0
	for i := range k {
		d := float64(i - half)
		k[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// convolveSeparable applies kernel along rows then columns with replicated borders
func convolveSeparable(plane []float64, w, h int, kernel []float64) []float64 {
	half := len(kernel) / 2
	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			acc := 0.0
			for k, kv := range kernel {
				xx := clampInt(x+k-half, 0, w-1)
				acc += plane[y*w+xx] * kv
			}
			tmp[y*w+x] = acc
		}
	}
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			acc := 0.0
			for k, kv := range kernel {
				yy := clampInt(y+k-half, 0, h-1)
				acc += tmp[yy*w+x] * kv
			}
			out[y*w+x] = acc
		}
	}
	return out
}
