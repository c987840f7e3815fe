package interceptor

import (
	"errors"
	"strings"
)

var (
	// ErrDupStreamBind is logged when a stream is bound while another stream with the
	// same SSRC is still bound. The session layer owns the SSRC uniqueness invariant,
	// interceptors replace the stale state and keep going.
	ErrDupStreamBind = errors.New("stream with same SSRC already bound, unbind first")

	// ErrInterceptorClosed is logged when a bind operation is attempted on an
	// interceptor that has already been closed. The unmodified reader/writer is
	// returned and no background work is started.
	ErrInterceptorClosed = errors.New("interceptor is closed")
)

// flattenErrs flattens multiple errors into one
func flattenErrs(errs []error) error {
	errs2 := []error{}
	for _, e := range errs {
		if e != nil {
			errs2 = append(errs2, e)
		}
	}
	if len(errs2) == 0 {
		return nil
	}
	return multiError(errs2)
}

type multiError []error

func (me multiError) Error() string {
	var errstrings []string

	for _, err := range me {
		if err != nil {
			errstrings = append(errstrings, err.Error())
		}
	}

	if len(errstrings) == 0 {
		return "multiError must contain multiple error but is empty"
	}

	return strings.Join(errstrings, "\n")
}

func (me multiError) Is(err error) bool {
	for _, e := range me {
		if errors.Is(e, err) {
			return true
		}
	}
	return false
}
