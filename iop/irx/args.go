package irx

import (
	"bytes"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Args are passed to a module's entry point as argc/argv.
type Args []string

// ParseArgs splits s the way a shell would.
func ParseArgs(s string) (Args, error) {
	words, err := shellquote.Split(s)
	if err != nil {
		return nil, err
	}
	return Args(words), nil
}

// Bytes returns the args in the layout loadcore expects: each argument NUL
// terminated, concatenated. Returns nil if there are no args.
func (a Args) Bytes() []byte {
	if len(a) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, arg := range a {
		buf.WriteString(arg)
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// ArgsFromBytes is the inverse of Args.Bytes.
func ArgsFromBytes(p []byte) Args {
	if len(p) == 0 {
		return nil
	}
	s := strings.TrimSuffix(string(p), "\x00")
	return Args(strings.Split(s, "\x00"))
}

func (a Args) String() string {
	return shellquote.Join(a...)
}
