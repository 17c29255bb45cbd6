package cursor

import "testing"

func solidCursor(w, h int, fill byte, alpha byte) Bitmap {
	pixels := make([]byte, w*h*4)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i] = fill
		pixels[i+1] = fill
		pixels[i+2] = fill
		pixels[i+3] = alpha
	}
	return Bitmap{HotspotX: 1, HotspotY: 1, Width: w, Height: h, Pixels: pixels}
}

func TestUpdateSuppressedWhenInactive(t *testing.T) {
	r := NewRenderer(4)
	_, ok := r.Update(solidCursor(16, 16, 1, 255))
	if ok {
		t.Fatal("expected suppression while inactive")
	}
}

func TestUpdateOversizedBitmapIsDefault(t *testing.T) {
	r := NewRenderer(4)
	r.SetActive(true)
	u, ok := r.Update(solidCursor(400, 400, 1, 255))
	if !ok {
		t.Fatal("expected ok=true when active")
	}
	if u.Kind != UpdateDefault {
		t.Fatalf("Kind = %v, want UpdateDefault", u.Kind)
	}
}

func TestUpdateFullyTransparentIsHidden(t *testing.T) {
	r := NewRenderer(4)
	r.SetActive(true)
	u, _ := r.Update(solidCursor(16, 16, 1, 0))
	if u.Kind != UpdateHidden {
		t.Fatalf("Kind = %v, want UpdateHidden", u.Kind)
	}
}

func TestUpdateNewBitmapIsNormal(t *testing.T) {
	r := NewRenderer(4)
	r.SetActive(true)
	u, _ := r.Update(solidCursor(16, 16, 7, 255))
	if u.Kind != UpdateNormal {
		t.Fatalf("Kind = %v, want UpdateNormal", u.Kind)
	}
	if u.Large {
		t.Fatal("expected small cursor to use PointerNew, not PointerLarge")
	}
}

func TestUpdateLargeBitmapUsesPointerLarge(t *testing.T) {
	r := NewRenderer(4)
	r.SetActive(true)
	u, _ := r.Update(solidCursor(128, 128, 7, 255))
	if u.Kind != UpdateNormal || !u.Large {
		t.Fatalf("expected large normal update, got %+v", u)
	}
}

func TestUpdateRepeatedBitmapIsCached(t *testing.T) {
	r := NewRenderer(4)
	r.SetActive(true)
	b := solidCursor(16, 16, 9, 255)

	first, _ := r.Update(b)
	if first.Kind != UpdateNormal {
		t.Fatalf("first Kind = %v, want UpdateNormal", first.Kind)
	}

	second, _ := r.Update(b)
	if second.Kind != UpdateCached {
		t.Fatalf("second Kind = %v, want UpdateCached", second.Kind)
	}
	if second.CacheIndex != first.CacheIndex {
		t.Fatalf("cache index changed between calls: %d != %d", second.CacheIndex, first.CacheIndex)
	}
}

func TestRendererEvictsLeastRecentlyUsed(t *testing.T) {
	r := NewRenderer(2)
	r.SetActive(true)

	a, _ := r.Update(solidCursor(8, 8, 1, 255))
	b, _ := r.Update(solidCursor(8, 8, 2, 255))
	// touch a again so b becomes LRU
	r.Update(solidCursor(8, 8, 1, 255))
	c, _ := r.Update(solidCursor(8, 8, 3, 255))

	if c.CacheIndex != b.CacheIndex {
		t.Fatalf("expected new entry to reuse evicted LRU slot %d, got %d", b.CacheIndex, c.CacheIndex)
	}
	if c.CacheIndex == a.CacheIndex {
		t.Fatal("recently used entry should not have been evicted")
	}
}

func TestZeroCapacityRendererIsAlwaysSuppressed(t *testing.T) {
	r := NewRenderer(0)
	r.SetActive(true)

	_, ok := r.Update(solidCursor(16, 16, 1, 255))
	if ok {
		t.Fatal("expected CacheSize 0 to suppress every update")
	}
	// Repeated calls must not panic evicting from an empty LRU.
	_, ok = r.Update(solidCursor(16, 16, 2, 255))
	if ok {
		t.Fatal("expected CacheSize 0 to remain suppressed across calls")
	}
}

func TestEqualComparesHotspotAndPixels(t *testing.T) {
	a := solidCursor(8, 8, 1, 255)
	b := solidCursor(8, 8, 1, 255)
	c := solidCursor(8, 8, 2, 255)
	if !Equal(a, b) {
		t.Fatal("expected identical bitmaps to be equal")
	}
	if Equal(a, c) {
		t.Fatal("expected differing pixels to not be equal")
	}
}
