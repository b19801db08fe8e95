package common

import (
	"errors"
	"fmt"
)

// ErrModulePaused is returned by mutating operations of a paused module.
var ErrModulePaused = errors.New("module paused")

// PauseView reports per-module pause switches.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard fails with ErrModulePaused, naming the module, when it is switched off.
// A nil view never blocks.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" || !p.IsPaused(module) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrModulePaused, module)
}
