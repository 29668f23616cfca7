package cache

import (
	"sync"

	"github.com/hypernova-labs/customer-console/internal/models"
)

// EntityCache mantiene la colección ordenada de clientes que refleja el
// último resultado del gateway. Se reemplaza al por mayor después de cada
// mutación; nunca se parchea incrementalmente.
type EntityCache struct {
	mu   sync.RWMutex
	rows []models.Customer
}

// New crea una cache vacía
func New() *EntityCache {
	return &EntityCache{}
}

// Replace sustituye el contenido completo de la cache
func (c *EntityCache) Replace(rows []models.Customer) {
	copied := make([]models.Customer, len(rows))
	copy(copied, rows)

	c.mu.Lock()
	c.rows = copied
	c.mu.Unlock()
}

// All retorna una copia de los registros en su orden actual
func (c *EntityCache) All() []models.Customer {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Customer, len(c.rows))
	copy(out, c.rows)
	return out
}

// Get busca un registro por id
func (c *EntityCache) Get(id string) (models.Customer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, row := range c.rows {
		if row.ID == id {
			return row, true
		}
	}
	return models.Customer{}, false
}

// Len retorna la cantidad de registros en cache
func (c *EntityCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}
