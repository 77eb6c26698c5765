package simfs

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/dsoprea/go-logging"
)

// Sentinel error kinds surfaced at the system-call boundary (§7 of the
// specification). Callers check these with errors.Is; internal code panics
// with them and recovers at each exported entry point, mirroring the
// teacher's log.PanicIf/log.Wrap idiom.
var (
	ErrNoSpace       = errors.New("bitmap cannot satisfy allocation")
	ErrTooLarge      = errors.New("file size exceeds maximum addressable by level 4")
	ErrDuplicateName = errors.New("directory entry with that name already exists")
	ErrDirectoryFull = errors.New("directory has no free entry slots")
	ErrPathNotFound  = errors.New("intermediate path component missing or not a directory")
	ErrNotFound      = errors.New("leaf name not found")
	ErrBadID         = errors.New("unknown open-file id")
	ErrInvalid       = errors.New("invalid argument")
)

// wrap annotates an error with a stack trace while keeping it matchable
// with errors.Is against any sentinel it carries.
func wrap(err error) error {
	if err == nil {
		return nil
	}

	return log.Wrap(err)
}

// wrapf builds a formatted error, and when a sentinel is given keeps the
// result errors.Is-comparable to it. This is kept separate from wrap/log.Wrap
// deliberately: go-logging's wrapped error carries a stack trace for display
// but is not guaranteed to preserve the %w chain, so sentinel construction
// never round-trips through it.
func wrapf(sentinel error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)

	if sentinel != nil {
		return fmt.Errorf("%s: %w", msg, sentinel)
	}

	return errors.New(msg)
}

// recoverAsError is installed via defer at every exported entry point:
//
//	defer func() {
//	    if errRaw := recover(); errRaw != nil {
//	        if err, ok = errRaw.(error); ok { /* keep err as-is */ } else { ... }
//	    }
//	}()
//
// A recovered error is stored unchanged, so any sentinel it carries stays
// errors.Is-comparable. errp must point at the function's named error return.
func recoverAsError(errp *error) {
	errRaw := recover()
	if errRaw == nil {
		return
	}

	if asErr, ok := errRaw.(error); ok {
		*errp = asErr
		return
	}

	*errp = log.Errorf("panic was not an error: [%s] [%v]", reflect.TypeOf(errRaw).Name(), errRaw)
}

// panicIf panics with err if non-nil, to be recovered by recoverAsError.
// err is panicked unwrapped so a sentinel inside it survives errors.Is.
func panicIf(err error) {
	if err != nil {
		panic(err)
	}
}

// panicSentinel panics with a sentinel-carrying error built by wrapf, to be
// recovered by recoverAsError.
func panicSentinel(sentinel error, format string, args ...interface{}) {
	panic(wrapf(sentinel, format, args...))
}
