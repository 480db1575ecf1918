package common

import nerrors "nftmarket/core/errors"

var ErrModulePaused = nerrors.ErrModulePaused

// ModuleMarket names the marketplace module for pause checks.
const ModuleMarket = "market"

type PauseView interface {
	IsPaused(module string) bool
}

// Pauses is a static PauseView built from configuration.
type Pauses map[string]bool

// IsPaused implements PauseView.
func (p Pauses) IsPaused(module string) bool {
	return p[module]
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
