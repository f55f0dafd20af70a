// Package mass waits for block devices to show up after their drivers were
// loaded.
//
// Loading the USB mass storage stack returns before the device is enumerated,
// and the IOP has no way of notifying the EE once it is. The only option is
// probing the device path until it becomes statable.
package mass

import "time"

// DefaultPath is the mount prefix of the first USB mass storage device.
const DefaultPath = "mass:/"

const (
	DefaultRetries      = 50
	DefaultInitialDelay = 500 * time.Millisecond
	DefaultInterval     = 20 * time.Millisecond
)

type Prober interface {
	// Stat returns 0 if path exists, or a negative errno.
	Stat(path string) (int32, error)
}

// Query describes a readiness poll. Zero values are taken as they are: no
// Retries means the device isn't probed at all and no delay means no wait.
// Use DefaultQuery as a starting point.
type Query struct {
	Path         string // DefaultPath if empty
	Retries      int
	InitialDelay time.Duration
	Interval     time.Duration

	// Sleep is used for all delays, time.Sleep if nil.
	Sleep func(time.Duration)
}

// DefaultQuery returns the poll used by the bring-up unless configured
// otherwise: 50 probes of mass:/, 20ms apart, after waiting 500ms.
func DefaultQuery() Query {
	return Query{
		Path:         DefaultPath,
		Retries:      DefaultRetries,
		InitialDelay: DefaultInitialDelay,
		Interval:     DefaultInterval,
	}
}

// WaitUntilReady blocks until q.Path can be stat'ed or the retries are used
// up. It gives the driver some time to start enumeration first.
//
// Running out of retries isn't an error. The result is only informational,
// file operations on a device which never showed up will fail on their own.
func WaitUntilReady(p Prober, q Query) (ready bool) {
	if q.Path == "" {
		q.Path = DefaultPath
	}
	sleep := func(d time.Duration) {
		if d <= 0 {
			return
		}
		if q.Sleep != nil {
			q.Sleep(d)
		} else {
			time.Sleep(d)
		}
	}

	sleep(q.InitialDelay)
	for retries := q.Retries; retries > 0; retries-- {
		ret, err := p.Stat(q.Path)
		if err == nil && ret == 0 {
			return true
		}
		sleep(q.Interval)
	}
	return false
}
