package gateway

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/customer-console/internal/models"
)

// MemoryGateway implementa DataGateway en memoria: la variante standalone
// para prototipos y tests, con ids y timestamps generados localmente
type MemoryGateway struct {
	mu   sync.Mutex
	rows []models.Customer
}

// NewMemoryGateway crea un gateway en memoria con los registros dados
func NewMemoryGateway(seed []models.Customer) *MemoryGateway {
	rows := make([]models.Customer, len(seed))
	copy(rows, seed)
	return &MemoryGateway{rows: rows}
}

// SeedCustomers retorna los registros de ejemplo para el modo prototipo
func SeedCustomers() []models.Customer {
	return []models.Customer{
		{
			ID:        "1",
			Name:      "Alice Johnson",
			GroupName: "VIP",
			Note:      "Preferred contact via email.",
			Balance:   1500,
			CreatedAt: time.Date(2023, 10, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:        "2",
			Name:      "Bob Smith",
			GroupName: "Regular",
			Note:      "Pending renewal.",
			Balance:   200,
			CreatedAt: time.Date(2023, 10, 5, 14, 30, 0, 0, time.UTC),
		},
		{
			ID:        "3",
			Name:      "Charlie Brown",
			GroupName: "New",
			Note:      "",
			Balance:   0,
			CreatedAt: time.Date(2023, 10, 10, 9, 15, 0, 0, time.UTC),
		},
	}
}

// Select retorna una copia de los registros ordenada por created_at
// descendente; entre timestamps iguales gana el insertado más reciente
func (g *MemoryGateway) Select(ctx context.Context) ([]models.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]models.Customer, len(g.rows))
	copy(out, g.rows)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Insert sintetiza id y created_at locales y antepone el registro
func (g *MemoryGateway) Insert(ctx context.Context, data models.CustomerFormData) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	c := models.Customer{
		ID:        uuid.NewString(),
		Name:      data.Name,
		GroupName: data.GroupName,
		Note:      data.Note,
		Balance:   data.Balance,
		CreatedAt: time.Now().UTC(),
	}
	g.rows = append([]models.Customer{c}, g.rows...)
	return nil
}

// Update reemplaza los campos editables del registro, preservando id y
// created_at
func (g *MemoryGateway) Update(ctx context.Context, id string, data models.CustomerFormData) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range g.rows {
		if g.rows[i].ID == id {
			g.rows[i] = data.ApplyTo(g.rows[i])
			return nil
		}
	}
	return models.ErrNotFound
}

// Delete remueve el registro de la colección
func (g *MemoryGateway) Delete(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range g.rows {
		if g.rows[i].ID == id {
			g.rows = append(g.rows[:i], g.rows[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}
