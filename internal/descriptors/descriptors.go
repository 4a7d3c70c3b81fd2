// Package descriptors implements a minimal local-descriptor extractor for
// the image pipeline. imageindex.DescriptorSource is an opaque collaborator
// by design; this package is the thin, concrete adapter cmd/sondeo needs so
// the image build and search paths are runnable rather than stubbed out.
//
// Extraction is deliberately simple: decode the image with the standard
// library, tile it into a fixed grid of non-overlapping patches, and
// summarize each patch as a small grayscale-intensity vector. No
// third-party computer-vision library in the pack addresses this concern,
// so it is grounded on the standard image package alone (see DESIGN.md).
package descriptors

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/sondeo/sondeo/internal/ierrors"
)

// PatchGrid is the number of patches per side; descriptors are
// (PatchGrid*PatchGrid) rows, one per tile.
const PatchGrid = 8

// SubdivisionsPerPatch is the side length of the grid of mean-intensity
// cells taken within each patch, giving a D = SubdivisionsPerPatch^2
// descriptor.
const SubdivisionsPerPatch = 4

// Dims is the descriptor dimensionality D produced by Descriptors.
const Dims = SubdivisionsPerPatch * SubdivisionsPerPatch

// Extractor resolves an image ID to a file under Dir and extracts its
// patch-grid descriptors.
type Extractor struct {
	Dir string
}

// New returns an Extractor reading image files from dir.
func New(dir string) *Extractor {
	return &Extractor{Dir: dir}
}

// Descriptors implements imageindex.DescriptorSource. It returns an
// N×Dims matrix, one row per grid patch, or a nil matrix if imageID has no
// resolvable file.
func (e *Extractor) Descriptors(imageID string) (*mat.Dense, error) {
	path, err := e.resolve(imageID)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, ierrors.IO(fmt.Sprintf("descriptors.Open(%s)", imageID), err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, ierrors.Input(fmt.Sprintf("descriptors.Decode(%s)", imageID), err)
	}

	return patchHistograms(img), nil
}

// resolve finds the file backing imageID, trying imageID itself as a
// relative path first and then a handful of common extensions.
func (e *Extractor) resolve(imageID string) (string, error) {
	candidates := []string{imageID}
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif"} {
		candidates = append(candidates, imageID+ext)
	}
	for _, c := range candidates {
		full := filepath.Join(e.Dir, c)
		if info, err := os.Stat(full); err == nil && !info.IsDir() {
			return full, nil
		}
	}
	return "", nil
}

// patchHistograms tiles img into a PatchGrid×PatchGrid grid and summarizes
// each tile as a SubdivisionsPerPatch×SubdivisionsPerPatch grid of mean
// grayscale intensities, each in [0,1].
func patchHistograms(img image.Image) *mat.Dense {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return mat.NewDense(0, Dims, nil)
	}

	rows := make([][]float64, 0, PatchGrid*PatchGrid)
	tileW := w / PatchGrid
	tileH := h / PatchGrid
	if tileW == 0 {
		tileW = 1
	}
	if tileH == 0 {
		tileH = 1
	}

	for ty := 0; ty < PatchGrid; ty++ {
		for tx := 0; tx < PatchGrid; tx++ {
			x0 := bounds.Min.X + tx*tileW
			y0 := bounds.Min.Y + ty*tileH
			x1 := x0 + tileW
			y1 := y0 + tileH
			if tx == PatchGrid-1 {
				x1 = bounds.Max.X
			}
			if ty == PatchGrid-1 {
				y1 = bounds.Max.Y
			}
			if x1 <= x0 || y1 <= y0 {
				continue
			}
			rows = append(rows, subdivisionHistogram(img, x0, y0, x1, y1))
		}
	}

	if len(rows) == 0 {
		return mat.NewDense(0, Dims, nil)
	}
	m := mat.NewDense(len(rows), Dims, nil)
	for i, r := range rows {
		m.SetRow(i, r)
	}
	return m
}

// subdivisionHistogram splits the tile [x0,x1)×[y0,y1) into a
// SubdivisionsPerPatch×SubdivisionsPerPatch grid and returns the mean
// grayscale intensity of each cell, normalized to [0,1].
func subdivisionHistogram(img image.Image, x0, y0, x1, y1 int) []float64 {
	w, h := x1-x0, y1-y0
	cellW := w / SubdivisionsPerPatch
	cellH := h / SubdivisionsPerPatch
	if cellW == 0 {
		cellW = 1
	}
	if cellH == 0 {
		cellH = 1
	}

	vec := make([]float64, Dims)
	for cy := 0; cy < SubdivisionsPerPatch; cy++ {
		for cx := 0; cx < SubdivisionsPerPatch; cx++ {
			cx0 := x0 + cx*cellW
			cy0 := y0 + cy*cellH
			cx1 := cx0 + cellW
			cy1 := cy0 + cellH
			if cx == SubdivisionsPerPatch-1 {
				cx1 = x1
			}
			if cy == SubdivisionsPerPatch-1 {
				cy1 = y1
			}
			vec[cy*SubdivisionsPerPatch+cx] = meanGray(img, cx0, cy0, cx1, cy1)
		}
	}
	return vec
}

func meanGray(img image.Image, x0, y0, x1, y1 int) float64 {
	if x1 <= x0 || y1 <= y0 {
		return 0
	}
	var sum float64
	var n int
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			gray := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 65535.0
			sum += gray
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
