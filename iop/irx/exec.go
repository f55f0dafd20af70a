package irx

// Result is the status of a module load. Negative values are failures,
// non-negative values may carry the module's own return code.
type Result int32

func (r Result) OK() bool { return r >= 0 }

// Executor transmits a module image into IOP memory and runs its entry point.
type Executor interface {
	ExecModuleBuffer(name string, data []byte, args []byte) (int32, error)
}

// Exec loads img on the IOP and blocks until it reports back. The returned
// error only signals a failed transport, the module's own failure is in
// Result.
func Exec(e Executor, img *Image, args Args) (Result, error) {
	ret, err := e.ExecModuleBuffer(img.Name, img.Data, args.Bytes())
	return Result(ret), err
}
