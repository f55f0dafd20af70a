//go:build !debug

// Package debug is the fatal channel used when the IOP is left in a state the
// program can't continue from.
//
// It also has assertions for internal invariants. They are checked only when
// building with the debug tag and compile to nothing otherwise.
package debug

const Enabled = false

func Assert(b bool, message string) {}

func AssertErrNil(err error) {}
