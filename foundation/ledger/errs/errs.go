// Package errs defines the closed set of validation errors the ledger core
// can produce. Every rejection of a transaction or block classifies into
// exactly one of these kinds so that independent nodes reject the same input
// for the same reason.
package errs

import "fmt"

// Generic represents a rejection that carries only a human readable reason.
type Generic struct {
	Message string
}

// NewGeneric constructs a Generic error from a format string.
func NewGeneric(format string, args ...any) *Generic {
	return &Generic{Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *Generic) Error() string {
	return e.Message
}

// =============================================================================

// Mistiming represents a transaction or block whose timestamp falls outside
// the allowed window relative to the chain clock.
type Mistiming struct {
	Message string
}

// NewMistiming constructs a Mistiming error from a format string.
func NewMistiming(format string, args ...any) *Mistiming {
	return &Mistiming{Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *Mistiming) Error() string {
	return e.Message
}

// =============================================================================

// AlreadyInTheState represents a transaction whose id is already committed.
type AlreadyInTheState struct {
	TxID   string
	Height uint64
}

// Error implements the error interface.
func (e *AlreadyInTheState) Error() string {
	return fmt.Sprintf("transaction %s is already in the state at height %d", e.TxID, e.Height)
}

// =============================================================================

// Activation represents a transaction whose governing feature is not yet
// activated at the current height.
type Activation struct {
	Message string
}

// NewActivation constructs an Activation error from a format string.
func NewActivation(format string, args ...any) *Activation {
	return &Activation{Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *Activation) Error() string {
	return e.Message
}

// =============================================================================

// InsufficientFee represents a declared fee below the computed minimum.
type InsufficientFee struct {
	Message string
}

// NewInsufficientFee constructs an InsufficientFee error from a format string.
func NewInsufficientFee(format string, args ...any) *InsufficientFee {
	return &InsufficientFee{Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *InsufficientFee) Error() string {
	return e.Message
}

// =============================================================================

// NegativeAmount represents a non positive amount where a positive value is
// required. Unit names the field or asset the amount belongs to.
type NegativeAmount struct {
	Amount int64
	Unit   string
}

// Error implements the error interface.
func (e *NegativeAmount) Error() string {
	return fmt.Sprintf("negative amount %d of %s", e.Amount, e.Unit)
}

// =============================================================================

// Overflow represents an arithmetic overflow of a 64 bit amount.
type Overflow struct {
	Message string
}

// NewOverflow constructs an Overflow error from a format string.
func NewOverflow(format string, args ...any) *Overflow {
	return &Overflow{Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *Overflow) Error() string {
	return e.Message
}

// =============================================================================

// TooBigArray represents a collection or payload above its declared limit.
type TooBigArray struct {
	Message string
}

// NewTooBigArray constructs a TooBigArray error from a format string.
func NewTooBigArray(format string, args ...any) *TooBigArray {
	return &TooBigArray{Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *TooBigArray) Error() string {
	return e.Message
}
