package services

import (
	"errors"

	"tecnoroute/internal/store"
)

var (
	ErrNotFound           = store.ErrNotFound
	ErrInvalidInput       = errors.New("datos inválidos")
	ErrForbidden          = errors.New("no tienes permiso para realizar esta acción")
	ErrEmailTaken         = errors.New("ya existe un usuario con este email")
	ErrInvalidCredentials = errors.New("email o contraseña inválidos")
	ErrVersionMismatch    = errors.New("el carrito cambió, recárgalo antes de modificarlo")
	ErrEmptyCart          = errors.New("el carrito está vacío")
	ErrInsufficientStock  = errors.New("stock insuficiente")
	ErrInvalidTransition  = errors.New("transición de estado inválida")
	ErrAlreadyClaimed     = errors.New("el pedido ya fue tomado por otro conductor")
	ErrDriverBusy         = errors.New("el conductor ya tiene un pedido activo")
	ErrNotEditable        = errors.New("solo los pedidos pendientes pueden modificarse")
)
