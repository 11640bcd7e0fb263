package entry

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownRecordType is returned when an entry names a record type that is not registered
	ErrUnknownRecordType = errors.New("unknown record type")
	// ErrZeroDivisor is wrapped by a ParseError when a derived value would divide by zero
	ErrZeroDivisor = errors.New("division by zero")
	// ErrNotFinite is wrapped by a ParseError when a value or derived value is NaN or infinite
	ErrNotFinite = errors.New("value is not a finite number")
)

// ParseError rejects a whole entry: a wrong value count, a token that is not
// a number, or a derivation that cannot produce a finite value.
type ParseError struct {
	RecordType string
	Input      string
	Token      string // offending token, empty for count mismatches
	Want, Got  int    // expected and supplied value counts, zero when the count was fine
	Field      string // measurement whose derivation failed
	Err        error
}

func (e *ParseError) Error() string {
	switch {
	case e.Want != e.Got:
		return fmt.Sprintf("%s expects %d value(s), got %d", e.RecordType, e.Want, e.Got)
	case e.Token != "":
		return fmt.Sprintf("invalid value %q for %s: enter numbers separated by spaces", e.Token, e.RecordType)
	case e.Field != "":
		return fmt.Sprintf("cannot compute %s for %s: %v", e.Field, e.RecordType, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("invalid %s entry: %v", e.RecordType, e.Err)
	default:
		return fmt.Sprintf("invalid %s entry %q", e.RecordType, e.Input)
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

// MissingFieldError is returned when a derivation references a field the
// decoded entry does not carry.
type MissingFieldError struct {
	RecordType  string
	Measurement string
	Field       string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s requires field %q", e.RecordType, e.Measurement, e.Field)
}
