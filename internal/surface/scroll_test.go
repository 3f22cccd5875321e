package surface

import (
	"image"
	"reflect"
	"testing"
)

func TestScrollDecomposition(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 80)
	region := image.Rect(10, 10, 50, 30)
	tests := []struct {
		name   string
		dx, dy int
		want   []string
	}{
		{"none", 0, 0, nil},
		{"horizontal", 4, 0, []string{"barrier", "scroll_x(1,20)", "barrier"}},
		{"vertical", 0, -3, []string{"barrier", "scroll_y(40,1)", "barrier"}},
		{"both", -2, 5, []string{"barrier", "scroll_x(1,20)", "barrier", "scroll_y(40,1)", "barrier"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl := &recordingList{}
			RecordScroll(cl, PlanScroll(region, bounds, tt.dx, tt.dy))
			if !reflect.DeepEqual(cl.cmds, tt.want) {
				t.Errorf("commands = %v, want %v", cl.cmds, tt.want)
			}
		})
	}
}

func TestPlanScrollClipsToBounds(t *testing.T) {
	steps := PlanScroll(image.Rect(-10, 70, 20, 90), image.Rect(0, 0, 100, 80), 1, 0)
	if len(steps) != 1 {
		t.Fatalf("got %d steps", len(steps))
	}
	a := steps[0].Args
	if a.Left != 0 || a.Top != 70 || a.Width != 20 || a.Height != 10 {
		t.Errorf("args = %+v", a)
	}
	if a.SurfaceWidth != 100 || a.SurfaceHeight != 80 {
		t.Errorf("surface size = %dx%d", a.SurfaceWidth, a.SurfaceHeight)
	}
	if steps[0].GroupsY != 10 {
		t.Errorf("GroupsY = %d, want 10", steps[0].GroupsY)
	}

	if got := PlanScroll(image.Rect(200, 200, 210, 210), image.Rect(0, 0, 100, 80), 1, 1); got != nil {
		t.Errorf("offscreen region planned %d steps", len(got))
	}
}

func TestShrinkDirty(t *testing.T) {
	dirty := image.Rect(0, 0, 100, 50)
	tests := []struct {
		dx, dy int
		want   image.Rectangle
	}{
		{0, 0, image.Rect(0, 0, 100, 50)},
		{10, 0, image.Rect(10, 0, 100, 50)},
		{-10, 0, image.Rect(0, 0, 90, 50)},
		{0, 5, image.Rect(0, 5, 100, 50)},
		{0, -5, image.Rect(0, 0, 100, 45)},
		{3, -4, image.Rect(3, 0, 100, 46)},
		{200, 0, image.Rectangle{}},
	}
	for _, tt := range tests {
		if got := ShrinkDirty(dirty, tt.dx, tt.dy); got != tt.want {
			t.Errorf("ShrinkDirty(%d, %d) = %v, want %v", tt.dx, tt.dy, got, tt.want)
		}
	}
}
