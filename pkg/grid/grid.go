// Package grid partitions square pixel buffers into regular cell grids.
//
// A [Buffer] holds a decoded square image as normalized RGB values. [Partition]
// slices a buffer into an R×R [CellSet]: every cell owns a copy of its pixel
// block and has a normalized (y, x) center position. Cells are enumerated in
// row-major order, so cell index i corresponds to grid coordinates
// (i/R, i%R) and to Positions[i].
//
// Feature extraction (mean cell color) lives in this package too, since it is
// a pure function over a CellSet.
package grid

import (
	"crypto/sha256"
	"encoding/hex"
	"image"
	"math"

	"github.com/cellmorph/cellmorph/pkg/errors"
)

// Buffer is an immutable square RGB pixel buffer with channel values in [0, 1].
// Pixels are stored row-major, three float64 channels per pixel.
type Buffer struct {
	size int
	pix  []float64
}

// NewBuffer creates a zeroed (black) buffer of the given side length.
func NewBuffer(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "buffer size must be positive, got %d", size)
	}
	return &Buffer{size: size, pix: make([]float64, size*size*3)}, nil
}

// FromImage converts a decoded image into a Buffer. The image must be square;
// cropping and resizing are the loader's responsibility.
func FromImage(img image.Image) (*Buffer, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w != h {
		return nil, errors.New(errors.ErrCodeInvalidInput, "image must be square, got %dx%d", w, h)
	}
	b, err := NewBuffer(w)
	if err != nil {
		return nil, err
	}
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			b.pix[i] = float64(r) / 65535.0
			b.pix[i+1] = float64(g) / 65535.0
			b.pix[i+2] = float64(bl) / 65535.0
			i += 3
		}
	}
	return b, nil
}

// Size returns the side length in pixels.
func (b *Buffer) Size() int { return b.size }

// At returns the RGB channels of the pixel at (x, y).
func (b *Buffer) At(x, y int) (r, g, bl float64) {
	i := (y*b.size + x) * 3
	return b.pix[i], b.pix[i+1], b.pix[i+2]
}

// Set assigns the pixel at (x, y). Only used while constructing a buffer;
// buffers handed to Partition must not be mutated afterwards.
func (b *Buffer) Set(x, y int, r, g, bl float64) {
	i := (y*b.size + x) * 3
	b.pix[i], b.pix[i+1], b.pix[i+2] = r, g, bl
}

// Hash returns a content hash of the buffer, suitable for cache keys.
// Channels are quantized to 8 bits so the hash matches across loads of the
// same source image.
func (b *Buffer) Hash() string {
	q := make([]byte, len(b.pix))
	for i, v := range b.pix {
		q[i] = uint8(math.Round(clamp01(v) * 255))
	}
	sum := sha256.Sum256(q)
	return hex.EncodeToString(sum[:])
}

// Cell is a rectangular pixel block cut from a buffer, addressed by its grid
// row and column. It owns its own pixel copy.
type Cell struct {
	Row, Col      int
	Width, Height int
	Pix           []float64 // row-major RGB, Width*Height*3 values
}

// At returns the RGB channels of the cell pixel at (x, y).
func (c *Cell) At(x, y int) (r, g, bl float64) {
	i := (y*c.Width + x) * 3
	return c.Pix[i], c.Pix[i+1], c.Pix[i+2]
}

// Position is a normalized (y, x) cell center in [0, 1]².
type Position struct {
	Y, X float64
}

// CellSet holds the N = R² cells of a partitioned buffer together with their
// center positions. Cells and Positions correspond index-for-index in
// row-major order.
type CellSet struct {
	Res       int // grid resolution R
	CellW     int // cell width in pixels
	CellH     int // cell height in pixels
	Cells     []Cell
	Positions []Position
}

// Len returns the number of cells, R².
func (cs *CellSet) Len() int { return len(cs.Cells) }

// Partition slices a buffer into an R×R grid of cells in row-major order.
//
// If the buffer side is not divisible by res, the excess right columns and
// bottom rows are dropped: only the largest size divisible by res is used.
// This is lossy but keeps every cell the same exact pixel size.
//
// The center of cell (row, col) is ((row+0.5)/res, (col+0.5)/res).
func Partition(b *Buffer, res int) (*CellSet, error) {
	if res <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "grid resolution must be positive, got %d", res)
	}
	cell := b.size / res
	if cell == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput,
			"buffer of size %d cannot be partitioned into a %dx%d grid", b.size, res, res)
	}

	n := res * res
	cs := &CellSet{
		Res:       res,
		CellW:     cell,
		CellH:     cell,
		Cells:     make([]Cell, 0, n),
		Positions: make([]Position, 0, n),
	}
	for row := 0; row < res; row++ {
		for col := 0; col < res; col++ {
			pix := make([]float64, cell*cell*3)
			for y := 0; y < cell; y++ {
				srcY := row*cell + y
				srcOff := (srcY*b.size + col*cell) * 3
				copy(pix[y*cell*3:(y+1)*cell*3], b.pix[srcOff:srcOff+cell*3])
			}
			cs.Cells = append(cs.Cells, Cell{
				Row:    row,
				Col:    col,
				Width:  cell,
				Height: cell,
				Pix:    pix,
			})
			cs.Positions = append(cs.Positions, Position{
				Y: (float64(row) + 0.5) / float64(res),
				X: (float64(col) + 0.5) / float64(res),
			})
		}
	}
	return cs, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
