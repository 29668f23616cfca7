package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hypernova-labs/customer-console/internal/cache"
	"github.com/hypernova-labs/customer-console/internal/gateway"
	"github.com/hypernova-labs/customer-console/internal/models"
	"github.com/hypernova-labs/customer-console/internal/session"
	"github.com/hypernova-labs/customer-console/internal/viewstate"
	"github.com/sirupsen/logrus"
)

// gatewayCallTimeout acota las llamadas al gateway disparadas por eventos
// de sesión, que no tienen un contexto de request propio
const gatewayCallTimeout = 15 * time.Second

// Snapshot es el estado que recibe la capa de presentación por ciclo de
// render
type Snapshot struct {
	Records []models.Customer `json:"records"`
	View    viewstate.View    `json:"view"`
	Editing *models.Customer  `json:"editing,omitempty"`
	Session *models.Session   `json:"session,omitempty"`
}

// Controller orquesta las operaciones CRUD coordinando cache, gateway,
// view-state y sesión. La cache se reconstruye al por mayor después de
// cada mutación exitosa (refetch-after-mutation); las mutaciones
// superpuestas se rechazan, su orden relativo no está garantizado.
type Controller struct {
	data     gateway.DataGateway
	sessions *session.Controller
	views    *viewstate.Machine
	cache    *cache.EntityCache
	mirror   *cache.Mirror
	logger   *logrus.Logger

	inFlight atomic.Bool

	mu             sync.Mutex
	observers      map[int]chan struct{}
	nextObs        int
	closed         bool
	releaseSession func()
}

// NewController crea el orquestador. mirror puede ser nil cuando Redis no
// está configurado.
func NewController(
	data gateway.DataGateway,
	sessions *session.Controller,
	views *viewstate.Machine,
	entityCache *cache.EntityCache,
	mirror *cache.Mirror,
	logger *logrus.Logger,
) *Controller {
	return &Controller{
		data:      data,
		sessions:  sessions,
		views:     views,
		cache:     entityCache,
		mirror:    mirror,
		logger:    logger,
		observers: make(map[int]chan struct{}),
	}
}

// Start carga el último snapshot conocido desde el mirror, se suscribe a
// las transiciones de sesión y dispara el fetch inicial si ya hay sesión
func (c *Controller) Start(ctx context.Context) {
	if c.mirror != nil {
		if rows, err := c.mirror.Load(ctx); err != nil {
			c.logger.WithError(err).Warn("Could not load mirrored snapshot")
		} else if rows != nil {
			c.cache.Replace(rows)
			c.logger.WithField("count", len(rows)).Info("Rendering from mirrored snapshot until first refresh")
		}
	}

	events, release := c.sessions.Subscribe()
	c.mu.Lock()
	c.releaseSession = release
	c.mu.Unlock()

	go c.watchSession(events)

	if c.sessions.Authenticated() {
		if err := c.Refresh(ctx); err != nil {
			c.logger.WithError(err).Error("Initial refresh failed")
		}
	}
}

// Close libera la suscripción de sesión y a los observadores
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	release := c.releaseSession
	for id, ch := range c.observers {
		close(ch)
		delete(c.observers, id)
	}
	c.mu.Unlock()

	if release != nil {
		release()
	}
}

// watchSession reacciona a las transiciones de sesión: login dispara el
// re-fetch, logout descarta los datos de la sesión anterior
func (c *Controller) watchSession(events <-chan session.Event) {
	for event := range events {
		switch event.Kind {
		case session.EventSignedIn:
			ctx, cancel := context.WithTimeout(context.Background(), gatewayCallTimeout)
			if err := c.Refresh(ctx); err != nil {
				c.logger.WithError(err).Error("Refresh after sign in failed")
			}
			cancel()
		case session.EventSignedOut:
			c.cache.Replace(nil)
			c.notify()
		case session.EventTokenRefreshed:
			// El token renovado ya viaja en el cliente del gateway
		}
	}
}

// Subscribe registra un observador de cambios de estado; cada cambio de
// snapshot emite una señal. La func retornada libera la suscripción.
func (c *Controller) Subscribe() (<-chan struct{}, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan struct{}, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextObs
	c.nextObs++
	c.observers[id] = ch

	var once sync.Once
	release := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if obs, ok := c.observers[id]; ok {
				close(obs)
				delete(c.observers, id)
			}
		})
	}
	return ch, release
}

// Snapshot arma el estado de presentación actual
func (c *Controller) Snapshot() Snapshot {
	view, editing := c.views.Snapshot()
	return Snapshot{
		Records: c.cache.All(),
		View:    view,
		Editing: editing,
		Session: c.sessions.Current(),
	}
}

// Refresh reconstruye la cache al por mayor desde el gateway. En falla la
// cache previa queda intacta.
func (c *Controller) Refresh(ctx context.Context) error {
	if !c.sessions.Authenticated() {
		return models.ErrNotAuthenticated
	}

	rows, err := c.data.Select(ctx)
	if err != nil {
		c.logger.WithError(err).Error("Refresh failed, keeping previous records")
		return err
	}

	c.cache.Replace(rows)
	c.storeMirror(ctx, rows)
	c.notify()
	return nil
}

// CreateClicked pasa la vista a Form en modo alta
func (c *Controller) CreateClicked() {
	c.views.ShowCreate()
	c.notify()
}

// EditClicked pasa la vista a Form llevando el registro indicado
func (c *Controller) EditClicked(id string) error {
	record, ok := c.cache.Get(id)
	if !ok {
		return models.ErrNotFound
	}
	c.views.ShowEdit(record)
	c.notify()
	return nil
}

// FormCancelled vuelve al listado descartando la edición en curso
func (c *Controller) FormCancelled() {
	c.views.Cancel()
	c.notify()
}

// FormSubmitted despacha el envío del formulario: alta cuando no hay
// registro en edición, actualización cuando lo hay
func (c *Controller) FormSubmitted(ctx context.Context, form models.CustomerFormData) error {
	if editing := c.views.Editing(); editing != nil {
		return c.Update(ctx, editing.ID, form)
	}
	return c.Create(ctx, form)
}

// Create valida e inserta un nuevo cliente; en éxito refresca la cache y
// vuelve al listado
func (c *Controller) Create(ctx context.Context, form models.CustomerFormData) error {
	return c.mutate(ctx, "create", func() error {
		if err := form.Validate(); err != nil {
			return err
		}
		return c.data.Insert(ctx, form)
	})
}

// Update valida y actualiza los campos editables del cliente; id y
// created_at no cambian
func (c *Controller) Update(ctx context.Context, id string, form models.CustomerFormData) error {
	return c.mutate(ctx, "update", func() error {
		if err := form.Validate(); err != nil {
			return err
		}
		return c.data.Update(ctx, id, form)
	})
}

// mutate ejecuta una mutación de formulario bajo el guard de vuelo único;
// en éxito refresca y transiciona submit-succeeded, en falla la vista
// permanece en Form para corregir y reintentar
func (c *Controller) mutate(ctx context.Context, op string, fn func() error) error {
	if !c.sessions.Authenticated() {
		return models.ErrNotAuthenticated
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		return models.ErrOperationInFlight
	}
	defer c.inFlight.Store(false)

	if err := fn(); err != nil {
		if models.IsValidation(err) {
			c.logger.WithError(err).WithField("op", op).Info("Submission rejected by validation")
		} else {
			c.logger.WithError(err).WithField("op", op).Error("Mutation failed")
		}
		return err
	}

	c.refreshAfterMutation(ctx, op)
	c.views.SubmitSucceeded()
	c.notify()
	return nil
}

// Delete elimina un cliente previa confirmación explícita del usuario.
// Rechazar la confirmación es un no-op completo. La vista no cambia: el
// borrado ocurre desde el listado.
func (c *Controller) Delete(ctx context.Context, id string, confirmed bool) error {
	if !c.sessions.Authenticated() {
		return models.ErrNotAuthenticated
	}
	if !confirmed {
		return models.ErrConfirmationDeclined
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		return models.ErrOperationInFlight
	}
	defer c.inFlight.Store(false)

	if err := c.data.Delete(ctx, id); err != nil {
		c.logger.WithError(err).WithField("id", id).Error("Delete failed")
		return err
	}

	c.refreshAfterMutation(ctx, "delete")
	c.notify()
	return nil
}

// refreshAfterMutation re-lee la tabla tras una mutación exitosa. La
// mutación ya fue aceptada por el backend: una falla aquí deja la cache
// previa y se registra, no deshace la operación.
func (c *Controller) refreshAfterMutation(ctx context.Context, op string) {
	rows, err := c.data.Select(ctx)
	if err != nil {
		c.logger.WithError(err).WithField("op", op).Warn("Refresh after mutation failed, records may be stale")
		return
	}
	c.cache.Replace(rows)
	c.storeMirror(ctx, rows)
}

// storeMirror escribe el snapshot al mirror cuando está configurado
func (c *Controller) storeMirror(ctx context.Context, rows []models.Customer) {
	if c.mirror == nil {
		return
	}
	if err := c.mirror.Store(ctx, rows); err != nil {
		c.logger.WithError(err).Warn("Could not mirror snapshot to Redis")
	}
}

// notify señala a los observadores que el snapshot cambió
func (c *Controller) notify() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ch := range c.observers {
		select {
		case ch <- struct{}{}:
		default:
			// Señal ya pendiente, el observador releerá el snapshot
		}
	}
}
