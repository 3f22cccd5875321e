package surface

import (
	"image"

	"github.com/gogpu/blit/gpucore"
)

// Step is one dispatch of a scroll plan.
type Step struct {
	Kernel  gpucore.Kernel
	Args    gpucore.ScrollArgs
	GroupsX uint32
	GroupsY uint32
}

// PlanScroll splits a scroll of region by (dx, dy) into 1-D shifts:
// horizontal first, then vertical. Axes with a zero delta are skipped.
// region is clipped to bounds; an empty region yields no steps.
func PlanScroll(region, bounds image.Rectangle, dx, dy int) []Step {
	region = region.Intersect(bounds)
	if region.Empty() || (dx == 0 && dy == 0) {
		return nil
	}
	args := gpucore.ScrollArgs{
		Left:          int32(region.Min.X),
		Top:           int32(region.Min.Y),
		Width:         int32(region.Dx()),
		Height:        int32(region.Dy()),
		DX:            int32(dx),
		DY:            int32(dy),
		SurfaceWidth:  int32(bounds.Dx()),
		SurfaceHeight: int32(bounds.Dy()),
	}

	var steps []Step
	if dx != 0 {
		steps = append(steps, Step{Kernel: gpucore.KernelScrollX, Args: args, GroupsX: 1, GroupsY: uint32(region.Dy())})
	}
	if dy != 0 {
		steps = append(steps, Step{Kernel: gpucore.KernelScrollY, Args: args, GroupsX: uint32(region.Dx()), GroupsY: 1})
	}
	return steps
}

// RecordScroll records steps, with a barrier before each dispatch and one
// after the last so later blits see the shifted pixels.
func RecordScroll(cl gpucore.CommandList, steps []Step) {
	if len(steps) == 0 {
		return
	}
	for _, s := range steps {
		cl.Barrier()
		cl.Dispatch(s.Kernel, s.Args, s.GroupsX, s.GroupsY)
	}
	cl.Barrier()
}

// ShrinkDirty removes from dirty the band a scroll by (dx, dy) has
// shifted in from outside, leaving the part that now holds moved pixels.
func ShrinkDirty(dirty image.Rectangle, dx, dy int) image.Rectangle {
	if dy > 0 {
		dirty.Min.Y += dy
	} else {
		dirty.Max.Y += dy
	}
	if dx >= 0 {
		dirty.Min.X += dx
	} else {
		dirty.Max.X += dx
	}
	if dirty.Empty() {
		return image.Rectangle{}
	}
	return dirty
}
