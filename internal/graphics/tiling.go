package graphics

// Tile is one compressed raw-bitmap tile, aligned to 4 pixels on both axes
// and never larger than 64x64 (spec.md §4.4).
type Tile struct {
	Rect       Rect
	Compressed []byte
	BitsPerPel int
}

const tileOverheadBytes = 26

// AlignTileRect aligns a damage rect to 4-pixel boundaries on both axes
// without exceeding the buffer bounds, then splits it into 64x64 tiles.
func AlignTileRect(r Rect, boundW, boundH int) []Rect {
	left := alignDown(r.Left, 4)
	top := alignDown(r.Top, 4)
	right := alignUp(r.Right, 4)
	bottom := alignUp(r.Bottom, 4)
	if right > boundW {
		right = boundW
	}
	if bottom > boundH {
		bottom = boundH
	}

	var tiles []Rect
	for y := top; y < bottom; y += tileSize {
		for x := left; x < right; x += tileSize {
			tiles = append(tiles, Rect{
				Left:   x,
				Top:    y,
				Right:  minInt(x+tileSize, right),
				Bottom: minInt(y+tileSize, bottom),
			})
		}
	}
	return tiles
}

func alignDown(v, n int) int {
	return (v / n) * n
}

func alignUp(v, n int) int {
	if v%n == 0 {
		return v
	}
	return (v/n + 1) * n
}

// PackBudget groups tiles into batches that each fit within the per-PDU
// byte budget (MultifragMaxRequestSize - 2, plus per-tile overhead), per
// spec.md §4.4's raw-bitmap packing rule.
func PackBudget(tiles []Tile, multifragMaxRequestSize uint32) [][]Tile {
	if len(tiles) == 0 {
		return nil
	}
	budget := int(multifragMaxRequestSize) - 2
	if budget <= 0 {
		budget = 1 << 16
	}

	var batches [][]Tile
	var current []Tile
	used := 0
	for _, t := range tiles {
		cost := len(t.Compressed) + tileOverheadBytes
		if used+cost > budget && len(current) > 0 {
			batches = append(batches, current)
			current = nil
			used = 0
		}
		current = append(current, t)
		used += cost
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// BitsPerPelFor returns the bit depth raw tiles are compressed at for a
// given color depth: planar for 32-bit, interleaved otherwise (spec.md §4.4).
func BitsPerPelFor(colorDepth int) int {
	return colorDepth
}

// IsPlanar reports whether a color depth uses planar compression (32-bit)
// rather than interleaved (24/16/15-bit).
func IsPlanar(colorDepth int) bool {
	return colorDepth == 32
}
