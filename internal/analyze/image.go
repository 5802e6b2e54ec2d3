package analyze

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"
	"strings"

	"github.com/ppiankov/deepguard/internal/model"
	"github.com/ppiankov/deepguard/internal/worker"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"gonum.org/v1/gonum/stat"
)

// Image check parameters
const (
	maxImageSide  = 512 // Longer side after downscaling
	freqSide      = 128 // Square size for the frequency check
	aiBlockSize   = 32
	aiBlockWindow = 200 // Only blocks starting in the top-left window are compared
	minTagCount   = 3
	edgeThreshold = 150.0
	stripWidth    = 5
	fallbackScore = 0.3
	noRegionScore = 0.2
	maxPixels     = 80_000_000 // Larger images are rejected before decoding
)

// aiSoftwareMarkers are substrings of Make/Software tags written by generators
var aiSoftwareMarkers = []string{"dalle", "midjourney", "stable", "gan", "diffusion"}

// decodedImage is the shared read-only input of the image checks
type decodedImage struct {
	width, height int
	px            *raster
	exif          *exif.Exif // nil when absent or unreadable
}

func decodeImage(path string) (*decodedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxPixels {
		return nil, fmt.Errorf("decode image: unsupported dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind image: %w", err)
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("decode image: empty bounds")
	}

	d := &decodedImage{
		width:  b.Dx(),
		height: b.Dy(),
		px:     newRaster(img, maxImageSide),
	}

	if _, err := f.Seek(0, io.SeekStart); err == nil {
		if x, err := exif.Decode(f); err == nil {
			d.exif = x
		}
	}

	return d, nil
}

func (a *HeuristicAnalyzer) analyzeImage(ctx context.Context, path string) (model.Findings, error) {
	d, err := decodeImage(path)
	if err != nil {
		return model.Findings{}, err
	}

	out := model.ImageFindings{Width: d.width, Height: d.height}
	tasks := []worker.Task{
		{Name: "pixel", Run: func(context.Context) error { out.PixelAnalysisScore = pixelScore(d.px); return nil }},
		{Name: "frequency", Run: func(context.Context) error { out.FrequencyAnalysisScore = frequencyScore(d.px); return nil }},
		{Name: "ai_generated", Run: func(context.Context) error { out.AIGeneratedScore = aiGeneratedScore(d.px); return nil }},
		{Name: "face", Run: func(context.Context) error { out.FaceManipulationScore = centralBlendScore(d.px); return nil }},
		{Name: "metadata", Run: func(context.Context) error {
			out.MetadataSuspicious, out.MetadataMinimal, out.AISoftwareTag = metadataFlags(d.exif)
			return nil
		}},
	}
	if err := worker.RunTasks(ctx, a.workers, tasks); err != nil {
		return model.Findings{}, err
	}

	return model.NewImageFindings(out), nil
}

// pixelScore combines texture smoothness, color spread and edge sparsity
func pixelScore(p *raster) float64 {
	smoothness := 1 - math.Min(1, laplacianVariance(p)/1000)
	colorScore := math.Min(1, math.Abs(colorVariance(p)-500)/500)
	edges := edgeDensity(p)
	return clamp01(smoothness*0.4 + colorScore*0.3 + (1-edges)*0.3)
}

// laplacianVariance is the variance of the 4-neighbour Laplacian response
func laplacianVariance(p *raster) float64 {
	if p.w < 3 || p.h < 3 {
		return 0
	}
	resp := make([]float64, 0, (p.w-2)*(p.h-2))
	for y := 1; y < p.h-1; y++ {
		for x := 1; x < p.w-1; x++ {
			c := p.at(p.gray, x, y)
			v := p.at(p.gray, x-1, y) + p.at(p.gray, x+1, y) + p.at(p.gray, x, y-1) + p.at(p.gray, x, y+1) - 4*c
			resp = append(resp, v)
		}
	}
	return popVariance(resp)
}

// colorVariance is the mean of the per-channel variances
func colorVariance(p *raster) float64 {
	return (popVariance(p.r) + popVariance(p.g) + popVariance(p.b)) / 3
}

// edgeDensity is the fraction of interior pixels whose Sobel magnitude exceeds edgeThreshold
func edgeDensity(p *raster) float64 {
	if p.w < 3 || p.h < 3 {
		return 0
	}
	edges, total := 0, 0
	for y := 1; y < p.h-1; y++ {
		for x := 1; x < p.w-1; x++ {
			g := p.gray
			gx := -p.at(g, x-1, y-1) - 2*p.at(g, x-1, y) - p.at(g, x-1, y+1) +
				p.at(g, x+1, y-1) + 2*p.at(g, x+1, y) + p.at(g, x+1, y+1)
			gy := -p.at(g, x-1, y-1) - 2*p.at(g, x, y-1) - p.at(g, x+1, y-1) +
				p.at(g, x-1, y+1) + 2*p.at(g, x, y+1) + p.at(g, x+1, y+1)
			if math.Hypot(gx, gy) > edgeThreshold {
				edges++
			}
			total++
		}
	}
	return float64(edges) / float64(total)
}

// frequencyScore measures how far the high/low spectral energy ratio is from 1
func frequencyScore(p *raster) float64 {
	plane := resizePlane(p.gray, p.w, p.h, freqSide, freqSide)
	mag := fft2Magnitude(plane, freqSide, freqSide)

	center := freqSide / 2
	radius := freqSide / 4
	var high, low float64
	var nHigh, nLow int
	for ky := 0; ky < freqSide; ky++ {
		// Distance from the zero frequency after centering the spectrum
		dy := (ky+center)%freqSide - center
		for kx := 0; kx < freqSide; kx++ {
			dx := (kx+center)%freqSide - center
			v := mag[ky*freqSide+kx]
			if dx*dx+dy*dy > radius*radius {
				high += v
				nHigh++
			} else {
				low += v
				nLow++
			}
		}
	}
	if nHigh == 0 || nLow == 0 {
		return fallbackScore
	}

	ratio := (high / float64(nHigh)) / (low/float64(nLow) + 1e-6)
	return clamp01(math.Abs(math.Log(ratio+1e-6)) / 2)
}

// aiGeneratedScore combines noise residual, block repetition, color spread and 8x8 block seams
func aiGeneratedScore(p *raster) float64 {
	blurred := convolveSeparable(p.gray, p.w, p.h, gaussianKernel(5, 1.1))
	noise := make([]float64, len(p.gray))
	for i := range noise {
		noise[i] = p.gray[i] - blurred[i]
	}
	noiseScore := math.Min(1, popVariance(noise)/50)

	similarity := blockSimilarity(p)
	colorScore := math.Min(1, colorVariance(p)/1000)
	seams := blockSeamScore(p)

	return clamp01(noiseScore*0.25 + similarity*0.30 + colorScore*0.25 + seams*0.20)
}

// blockSimilarity is the mean absolute correlation between vertically adjacent blocks
func blockSimilarity(p *raster) float64 {
	bs := aiBlockSize
	var sims []float64
	block := make([]float64, bs*bs)
	neighbor := make([]float64, bs*bs)

	for i := 0; i < min(p.h-bs, aiBlockWindow); i += bs {
		if i+bs*2 >= p.h {
			continue
		}
		for j := 0; j < min(p.w-bs, aiBlockWindow); j += bs {
			for y := 0; y < bs; y++ {
				copy(block[y*bs:(y+1)*bs], p.gray[(i+y)*p.w+j:(i+y)*p.w+j+bs])
				copy(neighbor[y*bs:(y+1)*bs], p.gray[(i+bs+y)*p.w+j:(i+bs+y)*p.w+j+bs])
			}
			c := stat.Correlation(block, neighbor, nil)
			if !math.IsNaN(c) && !math.IsInf(c, 0) {
				sims = append(sims, math.Abs(c))
			}
		}
	}
	if len(sims) == 0 {
		return fallbackScore
	}
	return clamp01(mean(sims))
}

// blockSeamScore measures luminance jumps across 8x8 block boundaries
func blockSeamScore(p *raster) float64 {
	if p.w < 16 || p.h < 16 {
		return fallbackScore
	}
	var seams []float64
	for i := 8; i < p.h-8; i += 8 {
		for j := 8; j < p.w-8; j += 8 {
			var top, bottom, left, right float64
			for k := 0; k < 8; k++ {
				top += p.at(p.gray, j+k, i-1)
				bottom += p.at(p.gray, j+k, i)
				left += p.at(p.gray, j-1, i+k)
				right += p.at(p.gray, j, i+k)
			}
			h := math.Abs(top-bottom) / 8
			v := math.Abs(left-right) / 8
			seams = append(seams, (h+v)/2)
		}
	}
	if len(seams) == 0 {
		return 0
	}
	return math.Min(1, mean(seams)/5)
}

// centralBlendScore looks for unusually smooth borders around the central subject region,
// the typical seam left when a face is pasted in. Low border variance scores high.
func centralBlendScore(p *raster) float64 {
	x0, y0 := p.w/4, p.h/4
	bw, bh := p.w/2, p.h/2
	if bw <= 20 || bh <= 20 {
		return noRegionScore
	}

	strip := func(x, y, w, h int) float64 {
		vals := make([]float64, 0, w*h)
		for yy := y; yy < y+h; yy++ {
			for xx := x; xx < x+w; xx++ {
				vals = append(vals, p.at(p.gray, xx, yy))
			}
		}
		return popVariance(vals)
	}

	edgeVariance := (strip(x0, y0, bw, stripWidth) +
		strip(x0, y0+bh-stripWidth, bw, stripWidth) +
		strip(x0, y0, stripWidth, bh) +
		strip(x0+bw-stripWidth, y0, stripWidth, bh)) / 4

	return math.Max(0, 1-edgeVariance/500)
}

// metadataFlags inspects EXIF. Missing or sparse metadata is minimal; generator names in Make or Software are tagged.
func metadataFlags(x *exif.Exif) (suspicious, minimal, aiTag bool) {
	if x == nil {
		return true, true, false
	}

	counter := &tagCounter{}
	_ = x.Walk(counter)
	if counter.n < minTagCount {
		minimal = true
	}

	for _, name := range []exif.FieldName{exif.Make, exif.Software} {
		tag, err := x.Get(name)
		if err != nil {
			continue
		}
		value := strings.ToLower(tag.String())
		for _, marker := range aiSoftwareMarkers {
			if strings.Contains(value, marker) {
				aiTag = true
			}
		}
	}

	return minimal || aiTag, minimal, aiTag
}

type tagCounter struct {
	n int
}

func (c *tagCounter) Walk(name exif.FieldName, tag *tiff.Tag) error {
	c.n++
	return nil
}
