// Package sbv applies the SBV patches to the IOP's RPC services.
//
// The stock loadfile service refuses to load modules from EE RAM and only
// accepts module paths with a rom prefix. Both have to be lifted before any
// module of the bring-up can be injected.
package sbv

import (
	"fmt"

	"github.com/joomcode/errorx"
)

// Patch identifies a single capability toggle.
type Patch uint8

const (
	_ Patch = iota
	EnableLMB
	DisablePrefixCheck
	EnableFileIO
)

var patchNames = [...]string{
	EnableLMB:          "sbv_patch_enable_lmb",
	DisablePrefixCheck: "sbv_patch_disable_prefix_check",
	EnableFileIO:       "sbv_patch_fileio",
}

func (p Patch) String() string {
	if int(p) < len(patchNames) && patchNames[p] != "" {
		return patchNames[p]
	}
	return fmt.Sprintf("sbv_patch(%d)", uint8(p))
}

// Patches is the order in which Apply issues the patches.
var Patches = [...]Patch{EnableLMB, DisablePrefixCheck, EnableFileIO}

type Patcher interface {
	ApplyPatch(p Patch) (int32, error)
}

var (
	ErrNamespace = errorx.NewNamespace("sbv")
	PatchFailed  = ErrNamespace.NewType("patch_failed")

	PatchProperty  = errorx.RegisterPrintableProperty("patch")
	StatusProperty = errorx.RegisterPrintableProperty("status")
)

// Apply issues all patches in order and stops at the first one which doesn't
// succeed. There are no retries, a failing patch means the RPC services are
// incompatible or have been patched before.
func Apply(p Patcher) error {
	for _, patch := range Patches {
		ret, err := p.ApplyPatch(patch)
		if err != nil {
			return PatchFailed.Wrap(err, "Failed to apply SBV patch %s", patch).
				WithProperty(PatchProperty, patch.String())
		}
		if ret < 0 {
			return PatchFailed.New("Failed to apply SBV patch %s", patch).
				WithProperty(PatchProperty, patch.String()).
				WithProperty(StatusProperty, ret)
		}
	}
	return nil
}
