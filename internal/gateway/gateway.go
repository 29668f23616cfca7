package gateway

import (
	"context"

	"github.com/hypernova-labs/customer-console/internal/models"
)

// TableCustomers es la tabla remota que respalda la colección de clientes
const TableCustomers = "customer"

// DataGateway expone las operaciones de tabla del backend remoto.
// Select siempre retorna los registros ordenados por created_at descendente.
type DataGateway interface {
	Select(ctx context.Context) ([]models.Customer, error)
	Insert(ctx context.Context, data models.CustomerFormData) error
	Update(ctx context.Context, id string, data models.CustomerFormData) error
	Delete(ctx context.Context, id string) error
}

// AuthGateway expone el servicio de autenticación por sesión del backend.
// Los backends sin servicio de auth (postgres directo, memoria) no lo
// implementan; en ese caso la consola corre sin gating de sesión.
type AuthGateway interface {
	// CurrentSession retorna la sesión válida existente, o nil si no hay
	CurrentSession(ctx context.Context) (*models.Session, error)
	SignUp(ctx context.Context, email, password string) error
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	SignOut(ctx context.Context) error
	// Refresh renueva la sesión a partir del refresh token vigente
	Refresh(ctx context.Context, refreshToken string) (*models.Session, error)
}
