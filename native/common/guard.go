package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a native module is administratively paused.
type PauseView interface {
	IsPaused(module string) bool
}

// StaticPauses is a fixed pause set, used by configuration and tests.
type StaticPauses map[string]bool

func (s StaticPauses) IsPaused(module string) bool {
	if s == nil {
		return false
	}
	return s[module]
}

// Guard returns ErrModulePaused when the named module is paused. A nil view
// or empty module name never blocks.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
