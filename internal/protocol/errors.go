package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientData    = errors.New("protocol: insufficient data")
	ErrWrongPacketFamily   = errors.New("protocol: wrong packet family")
	ErrMalformedPayload    = errors.New("protocol: malformed payload")
	ErrPacketTooLarge      = errors.New("protocol: packet too large")
	ErrPayloadTypeMismatch = errors.New("protocol: payload type does not match header type")
)

// InsufficientDataError reports a buffer too short for a header.
type InsufficientDataError struct {
	ExpectedMin int
	Got         int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("protocol: insufficient data: need %d bytes, got %d", e.ExpectedMin, e.Got)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// WrongPacketFamilyError reports a family marker bit that does not match the
// codec that was invoked. ExpectedBit is 0 for data and 1 for control.
type WrongPacketFamilyError struct {
	ExpectedBit uint8
}

func (e *WrongPacketFamilyError) Error() string {
	return fmt.Sprintf("protocol: wrong packet family: expected marker bit %d", e.ExpectedBit)
}

func (e *WrongPacketFamilyError) Is(target error) bool { return target == ErrWrongPacketFamily }

// MalformedPayloadError reports a control payload that does not fit its
// declared type: a wrong length, or a field value outside its range. Detail
// names the field when the length itself is acceptable.
type MalformedPayloadError struct {
	Type     ControlType
	Expected int
	Observed int
	Detail   string
}

func (e *MalformedPayloadError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("protocol: malformed %s payload: %s", e.Type, e.Detail)
	}
	return fmt.Sprintf("protocol: malformed %s payload: expected %d bytes, observed %d",
		e.Type, e.Expected, e.Observed)
}

func (e *MalformedPayloadError) Is(target error) bool { return target == ErrMalformedPayload }

func checkPacketSize(n int) error {
	if n > MaxPacketSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrPacketTooLarge, n, MaxPacketSize)
	}
	return nil
}
