package blit

import (
	"fmt"
)

// CreateGPUSprite uploads every level of c and returns a new handle.
// Handles are assigned sequentially from 0 and never change.
func (e *Engine) CreateGPUSprite(c *SpriteCollection) (SpriteHandle, error) {
	if e.closed {
		return -1, ErrClosed
	}
	h, err := e.sprites.Create(c)
	if err != nil {
		return -1, fmt.Errorf("blit: create sprite: %w", err)
	}
	return h, nil
}

// RestoreGPUSprite uploads c again under an existing handle after its
// textures were evicted. Restoring a resident sprite does nothing.
func (e *Engine) RestoreGPUSprite(h SpriteHandle, c *SpriteCollection) error {
	if e.closed {
		return ErrClosed
	}
	if err := e.sprites.Restore(h, c); err != nil {
		return fmt.Errorf("blit: restore sprite %d: %w", h, err)
	}
	return nil
}

// SpriteResident reports whether level of h can be drawn.
func (e *Engine) SpriteResident(h SpriteHandle, level int) bool {
	_, ok := e.sprites.Texture(h, level)
	return ok
}
