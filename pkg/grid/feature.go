package grid

// Feature is the mean RGB color of a cell, channels in [0, 1].
type Feature [3]float64

// Luminance returns the Rec. 601 luma of the feature color.
func (f Feature) Luminance() float64 {
	return 0.299*f[0] + 0.587*f[1] + 0.114*f[2]
}

// Features computes one average-color feature vector per cell.
// The result is parallel to cs.Cells and cs.Positions.
func Features(cs *CellSet) []Feature {
	feats := make([]Feature, len(cs.Cells))
	for i := range cs.Cells {
		c := &cs.Cells[i]
		var r, g, b float64
		for p := 0; p < len(c.Pix); p += 3 {
			r += c.Pix[p]
			g += c.Pix[p+1]
			b += c.Pix[p+2]
		}
		area := float64(c.Width * c.Height)
		feats[i] = Feature{r / area, g / area, b / area}
	}
	return feats
}
