package state

import (
	"errors"

	"tecnoroute/internal/apiclient"
)

var (
	ErrNotAuthenticated = errors.New("debes iniciar sesión para continuar")
	ErrItemNotFound     = errors.New("producto no encontrado en el carrito")
	ErrBusy             = errors.New("otra operación está en curso")
	ErrActiveOrder      = errors.New("ya tienes un pedido activo")
	ErrNoActiveOrder    = errors.New("no tienes un pedido activo")
	ErrOrderNotPending  = errors.New("el pedido ya no está disponible")
	ErrValidation       = errors.New("el formulario tiene errores")
)

const (
	MsgConnectivity = "No se pudo conectar con el servidor. Verifica tu conexión a internet."
	MsgGeneric      = "Ocurrió un error inesperado. Intenta nuevamente."
	MsgConflict     = "Los datos cambiaron en el servidor y se recargaron. Revisa e intenta de nuevo."
	MsgSessionEnded = "Tu sesión expiró. Inicia sesión nuevamente."
)

// FormatError turns any failure into the text shown to the user.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, apiclient.ErrConflict):
		return MsgConflict
	case errors.Is(err, apiclient.ErrUnauthorized):
		return MsgSessionEnded
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, apiclient.ErrNetwork):
		return MsgConnectivity
	case errors.Is(err, ErrNotAuthenticated), errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrBusy), errors.Is(err, ErrActiveOrder),
		errors.Is(err, ErrNoActiveOrder), errors.Is(err, ErrOrderNotPending),
		errors.Is(err, ErrValidation), errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrForbidden):
		return err.Error()
	default:
		return MsgGeneric
	}
}
