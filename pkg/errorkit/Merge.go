package errorkit

import (
	"strings"
)

// Merge will combine all given non nil error values into a single error value.
// If no valid error is given, nil is returned.
// If only a single non nil error value is given, the error value is returned.
func Merge(errs ...error) error {
	var cleanErrs []error
	for _, err := range errs {
		if err != nil {
			cleanErrs = append(cleanErrs, err)
		}
	}
	switch len(cleanErrs) {
	case 0:
		return nil
	case 1:
		return cleanErrs[0]
	default:
		return multiError(cleanErrs)
	}
}

type multiError []error

func (errs multiError) Error() string {
	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "\n")
}

func (errs multiError) Unwrap() []error { return errs }
