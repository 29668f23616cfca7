package viewstate

import (
	"sync"

	"github.com/hypernova-labs/customer-console/internal/models"
	"github.com/sirupsen/logrus"
)

// View identifica el modo de presentación activo
type View string

const (
	// ViewList es el modo de navegación del listado
	ViewList View = "list"
	// ViewForm es el modo de alta/edición; lleva opcionalmente el registro
	// en edición (nil en modo alta)
	ViewForm View = "form"
)

// Machine es la máquina de dos estados List/Form. Siempre está en
// exactamente uno de los dos; el registro en edición solo existe en Form y
// se limpia en toda salida de Form. Los intents que no corresponden al
// estado actual se ignoran.
type Machine struct {
	mu      sync.Mutex
	view    View
	editing *models.Customer
	logger  *logrus.Logger
}

// NewMachine crea la máquina en estado List
func NewMachine(logger *logrus.Logger) *Machine {
	return &Machine{
		view:   ViewList,
		logger: logger,
	}
}

// Snapshot retorna el estado actual y una copia del registro en edición
func (m *Machine) Snapshot() (View, *models.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.editing == nil {
		return m.view, nil
	}
	copied := *m.editing
	return m.view, &copied
}

// View retorna el modo de presentación activo
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

// Editing retorna una copia del registro en edición, o nil en modo alta
// o fuera de Form
func (m *Machine) Editing() *models.Customer {
	_, editing := m.Snapshot()
	return editing
}

// ShowCreate transiciona List → Form sin registro (modo alta)
func (m *Machine) ShowCreate() {
	m.transition(ViewList, ViewForm, nil, "create-clicked")
}

// ShowEdit transiciona List → Form llevando el registro a editar
func (m *Machine) ShowEdit(c models.Customer) {
	m.transition(ViewList, ViewForm, &c, "edit-clicked")
}

// SubmitSucceeded transiciona Form → List tras una mutación exitosa,
// limpiando el registro en edición
func (m *Machine) SubmitSucceeded() {
	m.transition(ViewForm, ViewList, nil, "submit-succeeded")
}

// Cancel transiciona Form → List descartando el registro en edición
func (m *Machine) Cancel() {
	m.transition(ViewForm, ViewList, nil, "cancel-clicked")
}

// transition aplica una arista de la máquina; las aristas inválidas se
// ignoran para que intents repetidos sean idempotentes
func (m *Machine) transition(from, to View, editing *models.Customer, intent string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.view != from {
		m.logger.WithFields(logrus.Fields{
			"intent": intent,
			"view":   m.view,
		}).Debug("View intent ignored in current state")
		return
	}

	m.view = to
	m.editing = editing
}
