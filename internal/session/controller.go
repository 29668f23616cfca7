package session

import (
	"context"
	"sync"
	"time"

	"github.com/hypernova-labs/customer-console/internal/gateway"
	"github.com/hypernova-labs/customer-console/internal/models"
	"github.com/sirupsen/logrus"
)

// State representa el estado de autenticación de la consola
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticated   State = "authenticated"
)

// EventKind clasifica las transiciones de sesión publicadas
type EventKind string

const (
	EventSignedIn       EventKind = "signed_in"
	EventSignedOut      EventKind = "signed_out"
	EventTokenRefreshed EventKind = "token_refreshed"
)

// Event es la notificación de cambio de sesión que reciben los suscriptores
type Event struct {
	Kind    EventKind
	Session *models.Session
}

const (
	refreshCheckInterval = 30 * time.Second
	refreshLeeway        = time.Minute
	subscriberBuffer     = 8
)

// Controller administra el ciclo de vida de la sesión y publica sus
// transiciones. Con auth nil la consola corre sin gating (variantes
// standalone y postgres directo).
type Controller struct {
	auth   gateway.AuthGateway
	logger *logrus.Logger

	mu      sync.Mutex
	session *models.Session
	subs    map[int]chan Event
	nextSub int
	closed  bool
	stop    chan struct{}
}

// NewController crea un nuevo controlador de sesión
func NewController(auth gateway.AuthGateway, logger *logrus.Logger) *Controller {
	return &Controller{
		auth:   auth,
		logger: logger,
		subs:   make(map[int]chan Event),
		stop:   make(chan struct{}),
	}
}

// Initialize consulta al gateway por una sesión válida existente y arranca
// el loop de renovación de token en segundo plano
func (c *Controller) Initialize(ctx context.Context) error {
	if c.auth == nil {
		return nil
	}

	existing, err := c.auth.CurrentSession(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("Could not recover existing session, starting unauthenticated")
	} else if existing != nil {
		c.setSession(existing, EventSignedIn)
	}

	go c.refreshLoop()
	return nil
}

// Close detiene el loop de renovación y libera a todos los suscriptores;
// después de Close no se publica ningún evento más
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.stop)
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.mu.Unlock()
}

// Subscribe registra un suscriptor de eventos de sesión. La func de
// liberación retornada debe invocarse al desmontar al suscriptor; es segura
// de llamar más de una vez.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	var once sync.Once
	release := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				close(sub)
				delete(c.subs, id)
			}
		})
	}
	return ch, release
}

// State retorna el estado de autenticación actual
func (c *Controller) State() State {
	if c.Authenticated() {
		return StateAuthenticated
	}
	return StateUnauthenticated
}

// Authenticated reporta si las operaciones dependientes de sesión están
// habilitadas; sin servicio de auth siempre lo están
func (c *Controller) Authenticated() bool {
	if c.auth == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Current retorna la sesión vigente, o nil si no hay
func (c *Controller) Current() *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// SignUp solicita la creación de una cuenta. El éxito no produce sesión:
// el usuario confirma por un canal externo (correo).
func (c *Controller) SignUp(ctx context.Context, email, password string) error {
	if c.auth == nil {
		return models.NewValidationError("auth", "authentication is not enabled for this backend")
	}
	return c.auth.SignUp(ctx, email, password)
}

// SignIn autentica con email y password; en éxito la sesión queda poblada
// y se notifica a los suscriptores
func (c *Controller) SignIn(ctx context.Context, email, password string) error {
	if c.auth == nil {
		return models.NewValidationError("auth", "authentication is not enabled for this backend")
	}

	s, err := c.auth.SignIn(ctx, email, password)
	if err != nil {
		return err
	}

	c.setSession(s, EventSignedIn)
	return nil
}

// SignOut termina la sesión. El descarte local es efectivo aunque el
// gateway reporte falla.
func (c *Controller) SignOut(ctx context.Context) error {
	if c.auth == nil {
		return nil
	}

	err := c.auth.SignOut(ctx)
	c.setSession(nil, EventSignedOut)
	if err != nil {
		c.logger.WithError(err).Warn("Gateway sign out failed, local session discarded")
	}
	return nil
}

// setSession reemplaza la sesión vigente y publica la transición cuando
// el valor efectivamente cambió
func (c *Controller) setSession(s *models.Session, kind EventKind) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if s == nil && c.session == nil {
		c.mu.Unlock()
		return
	}
	c.session = s

	event := Event{Kind: kind, Session: s}
	for _, ch := range c.subs {
		select {
		case ch <- event:
		default:
			// Suscriptor atrasado: el evento se descarta, el estado
			// actual siempre puede releerse vía Current
			c.logger.Debug("Session event dropped for slow subscriber")
		}
	}
	c.mu.Unlock()

	if s != nil {
		c.logger.WithFields(logrus.Fields{"event": kind, "email": s.Email}).Info("Session changed")
	} else {
		c.logger.WithField("event", kind).Info("Session changed")
	}
}

// refreshLoop renueva el token poco antes de su vencimiento; la política
// de expiración en sí es del gateway
func (c *Controller) refreshLoop() {
	ticker := time.NewTicker(refreshCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.maybeRefresh()
		}
	}
}

// maybeRefresh renueva la sesión cuando está por vencer
func (c *Controller) maybeRefresh() {
	c.mu.Lock()
	current := c.session
	c.mu.Unlock()

	if current == nil || current.ExpiresAt.IsZero() {
		return
	}
	if time.Until(current.ExpiresAt) > refreshLeeway {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	renewed, err := c.auth.Refresh(ctx, current.RefreshToken)
	if err != nil {
		c.logger.WithError(err).Warn("Token refresh failed, signing out")
		c.setSession(nil, EventSignedOut)
		return
	}

	c.setSession(renewed, EventTokenRefreshed)
}
