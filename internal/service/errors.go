package service

import (
	"errors"
	"fmt"
)

var (
	ErrCajaNoEncontrada  = errors.New("caja no encontrada")
	ErrOrdenNoEncontrada = errors.New("orden no encontrada")
	ErrSinCajaAbierta    = errors.New("no hay caja abierta en esta sucursal")
)

// ValidationError is a business-rule rejection. Handlers map it to 400 and
// show Msg to the cashier as is.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validacion(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
