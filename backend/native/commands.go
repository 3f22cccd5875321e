//go:build !nogpu

package native

import (
	"errors"

	"github.com/gogpu/blit/gpucore"
)

// ErrListClosed is returned when recording into or closing a closed list.
var ErrListClosed = errors.New("native: command list is closed")

type opcode uint8

const (
	opBind opcode = iota
	opConstants
	opDraw
	opDispatch
	opComposite
)

type command struct {
	op        opcode
	bindings  gpucore.Bindings
	constants gpucore.PassConstants
	words     []uint32
	count     int
	kernel    gpucore.Kernel
	args      gpucore.ScrollArgs
	target    gpucore.TextureID
	mode      gpucore.ShaderMode
}

// CommandList records commands. HAL encoding happens at submission, when
// descriptors and bound resources are resolved.
type CommandList struct {
	label   string
	cmds    []command
	closed  bool
	dropped bool
}

func (l *CommandList) record(c command) {
	if l.closed {
		l.dropped = true
		return
	}
	l.cmds = append(l.cmds, c)
}

// Reset discards recorded commands and reopens the list. HAL resources of
// earlier submissions belong to the queue and are freed when they complete.
func (l *CommandList) Reset() error {
	l.cmds = l.cmds[:0]
	l.closed = false
	l.dropped = false
	return nil
}

// Bind records a binding change.
func (l *CommandList) Bind(b gpucore.Bindings) { l.record(command{op: opBind, bindings: b}) }

// SetPassConstants records pass constants.
func (l *CommandList) SetPassConstants(c gpucore.PassConstants) {
	l.record(command{op: opConstants, constants: c})
}

// DrawBatch records count packed requests. They are encoded as one compute
// pass each, in order.
func (l *CommandList) DrawBatch(words []uint32, count int) {
	n := count * gpucore.RequestWords
	l.record(command{op: opDraw, words: append([]uint32(nil), words[:n]...), count: count})
}

// Draw records one packed request.
func (l *CommandList) Draw(words []uint32) {
	l.record(command{
		op:    opDraw,
		words: append([]uint32(nil), words[:gpucore.RequestWords]...),
		count: 1,
	})
}

// Dispatch records a scroll step. The grid is derived from the region, so
// the requested group counts are not used.
func (l *CommandList) Dispatch(k gpucore.Kernel, args gpucore.ScrollArgs, _, _ uint32) {
	l.record(command{op: opDispatch, kernel: k, args: args})
}

// Barrier is implicit between compute passes and records nothing.
func (l *CommandList) Barrier() {
	if l.closed {
		l.dropped = true
	}
}

// Composite records the final pass into target.
func (l *CommandList) Composite(target gpucore.TextureID, mode gpucore.ShaderMode) {
	l.record(command{op: opComposite, target: target, mode: mode})
}

// Close ends recording.
func (l *CommandList) Close() error {
	if l.closed || l.dropped {
		return ErrListClosed
	}
	l.closed = true
	return nil
}

// Len returns the number of recorded commands.
func (l *CommandList) Len() int { return len(l.cmds) }
