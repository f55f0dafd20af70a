package debug

// Halted is the value Fatal panics with. Recovering it is only meaningful in
// tests, the IOP can't be brought back into a known state without a reset.
type Halted struct {
	Message string
}

func (h Halted) Error() string { return "halt: " + h.Message }

// Fatal halts the program with message. Unlike Assert it is never compiled
// out.
func Fatal(message string) {
	panic(Halted{message})
}
