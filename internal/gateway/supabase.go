package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hypernova-labs/customer-console/internal/config"
	"github.com/hypernova-labs/customer-console/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/supabase-community/gotrue-go/types"
	postgrest "github.com/supabase-community/postgrest-go"
	supabase "github.com/supabase-community/supabase-go"
)

// SupabaseGateway implementa DataGateway y AuthGateway sobre el cliente de
// Supabase (PostgREST para la tabla, GoTrue para la autenticación)
type SupabaseGateway struct {
	client *supabase.Client
	table  string
	logger *logrus.Logger

	mu      sync.Mutex
	session *models.Session
}

// NewSupabaseGateway crea una nueva instancia del gateway de Supabase
func NewSupabaseGateway(cfg *config.SupabaseConfig, logger *logrus.Logger) (*SupabaseGateway, error) {
	client, err := supabase.NewClient(cfg.URL, cfg.AnonKey, &supabase.ClientOptions{
		Schema: cfg.Schema,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating Supabase client: %w", err)
	}

	return &SupabaseGateway{
		client: client,
		table:  TableCustomers,
		logger: logger,
	}, nil
}

// HealthCheck verifica que la tabla remota sea alcanzable
func (g *SupabaseGateway) HealthCheck() error {
	_, _, err := g.client.From(g.table).Select("id", "exact", true).Execute()
	if err != nil {
		return fmt.Errorf("error checking Supabase connection: %w", err)
	}
	return nil
}

// Select obtiene todos los clientes ordenados por created_at descendente
func (g *SupabaseGateway) Select(ctx context.Context) ([]models.Customer, error) {
	var rows []models.Customer
	_, err := g.client.From(g.table).
		Select("*", "", false).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, models.NewGatewayError("select", err)
	}

	g.logger.WithField("count", len(rows)).Debug("Customers fetched from Supabase")
	return rows, nil
}

// Insert inserta un nuevo cliente; id y created_at los asigna el backend
func (g *SupabaseGateway) Insert(ctx context.Context, data models.CustomerFormData) error {
	_, _, err := g.client.From(g.table).
		Insert(formPayload(data), false, "", "minimal", "").
		Execute()
	if err != nil {
		return models.NewGatewayError("insert", err)
	}

	g.logger.WithField("name", data.Name).Info("Customer inserted")
	return nil
}

// Update actualiza los campos editables del cliente filtrado por id
func (g *SupabaseGateway) Update(ctx context.Context, id string, data models.CustomerFormData) error {
	_, _, err := g.client.From(g.table).
		Update(formPayload(data), "minimal", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return models.NewGatewayError("update", err)
	}

	g.logger.WithFields(logrus.Fields{"id": id, "name": data.Name}).Info("Customer updated")
	return nil
}

// Delete elimina el cliente filtrado por id
func (g *SupabaseGateway) Delete(ctx context.Context, id string) error {
	_, _, err := g.client.From(g.table).
		Delete("minimal", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return models.NewGatewayError("delete", err)
	}

	g.logger.WithField("id", id).Info("Customer deleted")
	return nil
}

// CurrentSession retorna la sesión vigente, renovándola si ya venció.
// Un proceso recién arrancado no tiene sesión previa.
func (g *SupabaseGateway) CurrentSession(ctx context.Context) (*models.Session, error) {
	g.mu.Lock()
	current := g.session
	g.mu.Unlock()

	if current == nil {
		return nil, nil
	}
	if !current.Expired(time.Now()) {
		return current, nil
	}
	return g.Refresh(ctx, current.RefreshToken)
}

// SignUp solicita la creación de una cuenta; la confirmación llega por
// correo, no se asume sesión inmediata
func (g *SupabaseGateway) SignUp(ctx context.Context, email, password string) error {
	_, err := g.client.Auth.Signup(types.SignupRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return models.NewGatewayError("signup", err)
	}

	g.logger.WithField("email", email).Info("Sign up requested, confirmation pending")
	return nil
}

// SignIn autentica con email y password y deja el token activo en el
// cliente para las llamadas de tabla siguientes
func (g *SupabaseGateway) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	session, err := g.client.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, models.NewGatewayError("signin", err)
	}

	s := g.toSession(session)
	g.mu.Lock()
	g.session = s
	g.mu.Unlock()

	g.logger.WithField("email", s.Email).Info("Signed in")
	return s, nil
}

// SignOut termina la sesión; el descarte local ocurre aunque el backend
// reporte falla
func (g *SupabaseGateway) SignOut(ctx context.Context) error {
	err := g.client.Auth.Logout()

	g.mu.Lock()
	g.session = nil
	g.mu.Unlock()

	if err != nil {
		g.logger.WithError(err).Warn("Sign out reported an error, session discarded anyway")
		return models.NewGatewayError("signout", err)
	}

	g.logger.Info("Signed out")
	return nil
}

// Refresh renueva la sesión con el refresh token vigente
func (g *SupabaseGateway) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	session, err := g.client.RefreshToken(refreshToken)
	if err != nil {
		return nil, models.NewGatewayError("refresh", err)
	}

	s := g.toSession(session)
	g.mu.Lock()
	g.session = s
	g.mu.Unlock()

	return s, nil
}

// toSession convierte la sesión de GoTrue al modelo propio
func (g *SupabaseGateway) toSession(s types.Session) *models.Session {
	return &models.Session{
		UserID:       s.User.ID.String(),
		Email:        s.User.Email,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(s.ExpiresIn) * time.Second),
	}
}

// formPayload arma el payload de tabla a partir de los campos editables
func formPayload(data models.CustomerFormData) map[string]interface{} {
	return map[string]interface{}{
		"name":       data.Name,
		"group_name": data.GroupName,
		"note":       data.Note,
		"balance":    data.Balance,
	}
}
