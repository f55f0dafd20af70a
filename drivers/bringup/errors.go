package bringup

import (
	"github.com/joomcode/errorx"

	"github.com/clktmr/ps2/iop/sbv"
)

var (
	ErrNamespace = errorx.NewNamespace("bringup")

	// PatchFailure is returned if the IOP rejected one of the SBV patches.
	PatchFailure = sbv.PatchFailed

	// ModuleLoadFailure is returned if a module couldn't be loaded. No
	// module after it was attempted.
	ModuleLoadFailure = ErrNamespace.NewType("module_load_failed")
	ModuleMissing     = ModuleLoadFailure.NewSubtype("module_missing")

	ResetFailure = ErrNamespace.NewType("reset_failed")

	ModuleProperty = errorx.RegisterPrintableProperty("module")
	// StatusProperty holds the negative status returned by the IOP, for
	// failed patches as well as failed modules.
	StatusProperty = sbv.StatusProperty
	PatchProperty  = sbv.PatchProperty
)
