package frontend

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
)

// iconBaseSize is the size the SVG is rasterized at; smaller icons are scaled down from it.
const iconBaseSize = 512

// iconRenderer turns the page icon into PNGs for home-screen installs.
// Rendered sizes are cached for the life of the process.
type iconRenderer struct {
	svg []byte

	mu    sync.Mutex
	base  *image.RGBA
	cache map[int][]byte
}

func newIconRenderer(svg []byte) *iconRenderer {
	return &iconRenderer{
		svg:   svg,
		cache: make(map[int][]byte),
	}
}

// PNG returns the icon as a size x size PNG.
func (r *iconRenderer) PNG(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid icon size %d", size)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if data, ok := r.cache[size]; ok {
		return data, nil
	}
	if r.base == nil {
		base, err := rasterizeSVG(r.svg, iconBaseSize)
		if err != nil {
			return nil, err
		}
		r.base = base
	}

	img := r.base
	if size != iconBaseSize {
		scaled := image.NewRGBA(image.Rect(0, 0, size, size))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), r.base, r.base.Bounds(), draw.Over, nil)
		img = scaled
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode icon: %w", err)
	}
	slog.Debug("iconRenderer: rendered icon", "size", size, "output_size_bytes", buf.Len())

	r.cache[size] = buf.Bytes()
	return r.cache[size], nil
}

func rasterizeSVG(svgData []byte, size int) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, dst, dst.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)
	return dst, nil
}
