//go:build debug

package debug

// Enabled reports whether assertions are compiled in. Checks that are costly
// to compute belong inside `if debug.Enabled {...}`.
const Enabled = true

// Assert halts through Fatal if b is false.
func Assert(b bool, message string) {
	if !b {
		Fatal("assertion failed: " + message)
	}
}

// AssertErrNil halts through Fatal if err is not nil.
func AssertErrNil(err error) {
	if err != nil {
		Fatal("unexpected error: " + err.Error())
	}
}
