package models

import (
	"errors"
	"fmt"
)

// ErrorCode representa el código de error
type ErrorCode string

const (
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrorCodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrorCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrorCodeConflict       ErrorCode = "CONFLICT"
	ErrorCodeGateway        ErrorCode = "GATEWAY"
	ErrorCodeInternal       ErrorCode = "INTERNAL"
)

// Errores centinela de la capa de orquestación
var (
	// ErrConfirmationDeclined indica que el usuario rechazó la confirmación
	// de una acción destructiva; no es una falla, la operación simplemente
	// no ocurre
	ErrConfirmationDeclined = errors.New("confirmation declined")

	// ErrNotAuthenticated indica un intento de mutación sin sesión activa
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrOperationInFlight indica que ya hay una mutación en curso
	ErrOperationInFlight = errors.New("another operation is in flight")

	// ErrNotFound indica que el cliente no existe en la colección activa
	ErrNotFound = errors.New("customer not found")
)

// ValidationError representa una falla de validación local; nunca llega
// al gateway
type ValidationError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// Error implementa la interfaz error
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Issue)
}

// NewValidationError crea un error de validación
func NewValidationError(field, issue string) error {
	return &ValidationError{Field: field, Issue: issue}
}

// IsValidation reporta si err es (o envuelve) una falla de validación
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// GatewayError envuelve una falla del gateway remoto (red, auth o storage)
type GatewayError struct {
	Op  string
	Err error
}

// Error implementa la interfaz error
func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s failed: %v", e.Op, e.Err)
}

// Unwrap expone la causa original
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NewGatewayError crea un error de gateway
func NewGatewayError(op string, err error) error {
	return &GatewayError{Op: op, Err: err}
}

// IsGateway reporta si err es (o envuelve) una falla del gateway
func IsGateway(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}

// ErrorDetail representa un detalle específico del error
type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// ErrorInfo representa la información del error
type ErrorInfo struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorResponse representa la respuesta de error estandarizada
type ErrorResponse struct {
	Error ErrorInfo `json:"error"`
}

// NewErrorResponse crea una nueva respuesta de error
func NewErrorResponse(code ErrorCode, message string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorInfo{
			Code:    string(code),
			Message: message,
		},
	}
}

// NewValidationErrorResponse crea una respuesta de validación con detalles
func NewValidationErrorResponse(message string, details []ErrorDetail) ErrorResponse {
	return ErrorResponse{
		Error: ErrorInfo{
			Code:    string(ErrorCodeInvalidRequest),
			Message: message,
			Details: details,
		},
	}
}

// NewUnauthorizedErrorResponse crea una respuesta de autenticación fallida
func NewUnauthorizedErrorResponse(message string) ErrorResponse {
	return NewErrorResponse(ErrorCodeUnauthorized, message)
}

// NewNotFoundErrorResponse crea una respuesta de recurso no encontrado
func NewNotFoundErrorResponse(message string) ErrorResponse {
	return NewErrorResponse(ErrorCodeNotFound, message)
}

// NewConflictErrorResponse crea una respuesta de conflicto
func NewConflictErrorResponse(message string) ErrorResponse {
	return NewErrorResponse(ErrorCodeConflict, message)
}

// NewGatewayErrorResponse crea una respuesta de falla del gateway
func NewGatewayErrorResponse(message string) ErrorResponse {
	return NewErrorResponse(ErrorCodeGateway, message)
}

// NewInternalErrorResponse crea una respuesta de error interno
func NewInternalErrorResponse(message string) ErrorResponse {
	return NewErrorResponse(ErrorCodeInternal, message)
}
