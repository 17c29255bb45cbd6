package graphics

import "testing"

func TestDetectorFirstEncodeDamagesWholeSurface(t *testing.T) {
	d := NewDetector()
	buf := solidBuffer(128, 128, 7)
	damage := d.Diff(buf)
	if len(damage) == 0 {
		t.Fatal("expected whole-surface damage on first encode")
	}
}

func TestDetectorIdenticalFramesNoDamage(t *testing.T) {
	d := NewDetector()
	buf1 := solidBuffer(128, 128, 7)
	buf2 := solidBuffer(128, 128, 7)

	d.Diff(buf1)
	damage := d.Diff(buf2)
	if len(damage) != 0 {
		t.Fatalf("expected no damage for identical buffers, got %d rects", len(damage))
	}
}

func TestDetectorPartialChangeOnlyDamagesChangedTile(t *testing.T) {
	d := NewDetector()
	buf1 := solidBuffer(128, 128, 1)
	d.Diff(buf1)

	buf2 := solidBuffer(128, 128, 1)
	// Mutate one pixel in the second 64x64 tile column.
	buf2.Data[64*4] = 255

	damage := d.Diff(buf2)
	if len(damage) != 1 {
		t.Fatalf("expected exactly 1 damaged tile, got %d", len(damage))
	}
	if damage[0].Left != 64 {
		t.Fatalf("expected damage in second tile column, got %+v", damage[0])
	}
}

func TestDetectorInvalidateForcesWholeSurfaceDamage(t *testing.T) {
	d := NewDetector()
	buf := solidBuffer(64, 64, 3)
	d.Diff(buf)

	d.Invalidate()
	damage := d.Diff(buf)
	if len(damage) == 0 {
		t.Fatal("expected damage after Invalidate even with unchanged pixels")
	}
}
