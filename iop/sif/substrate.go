package sif

import "github.com/clktmr/ps2/iop/sbv"

// Substrate is everything the IOP side of the link has to provide. Both the
// Client and the simulated IOP implement it.
type Substrate interface {
	ApplyPatch(p sbv.Patch) (int32, error)
	ExecModuleBuffer(name string, data []byte, args []byte) (int32, error)
	Stat(path string) (int32, error)
	Reset() (bool, error)
	Sync() (bool, error)
}
