package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/customer-console/internal/config"
	"github.com/hypernova-labs/customer-console/internal/models"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// PostgresGateway implementa DataGateway contra PostgreSQL directo, para
// despliegues self-hosted sin el servicio de auth administrado
type PostgresGateway struct {
	db     *sql.DB
	logger *logrus.Logger
}

// NewPostgresGateway establece la conexión a PostgreSQL
func NewPostgresGateway(cfg *config.Config, logger *logrus.Logger) (*PostgresGateway, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Pool dimensionado para una consola de un solo usuario
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(10 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	return &PostgresGateway{
		db:     db,
		logger: logger,
	}, nil
}

// Close cierra la conexión a la base de datos
func (g *PostgresGateway) Close() error {
	return g.db.Close()
}

// HealthCheck verifica la salud de la base de datos
func (g *PostgresGateway) HealthCheck() error {
	if err := g.db.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := g.db.QueryContext(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("database query test failed: %w", err)
	}

	return nil
}

// Select obtiene todos los clientes ordenados por created_at descendente
func (g *PostgresGateway) Select(ctx context.Context) ([]models.Customer, error) {
	query := `
		SELECT id, name, group_name, note, balance, created_at
		FROM customer
		ORDER BY created_at DESC
	`

	rows, err := g.db.QueryContext(ctx, query)
	if err != nil {
		return nil, models.NewGatewayError("select", err)
	}
	defer rows.Close()

	var customers []models.Customer
	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.GroupName, &c.Note, &c.Balance, &c.CreatedAt); err != nil {
			return nil, models.NewGatewayError("select", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewGatewayError("select", err)
	}

	g.logger.WithField("count", len(customers)).Debug("Customers fetched from Postgres")
	return customers, nil
}

// Insert inserta un nuevo cliente asignando id y created_at
func (g *PostgresGateway) Insert(ctx context.Context, data models.CustomerFormData) error {
	query := `
		INSERT INTO customer (id, name, group_name, note, balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := g.db.ExecContext(ctx, query,
		uuid.NewString(), data.Name, data.GroupName, data.Note, data.Balance, time.Now().UTC(),
	)
	if err != nil {
		return models.NewGatewayError("insert", err)
	}

	g.logger.WithField("name", data.Name).Info("Customer inserted")
	return nil
}

// Update actualiza los campos editables del cliente filtrado por id
func (g *PostgresGateway) Update(ctx context.Context, id string, data models.CustomerFormData) error {
	query := `
		UPDATE customer
		SET name = $1, group_name = $2, note = $3, balance = $4
		WHERE id = $5
	`

	result, err := g.db.ExecContext(ctx, query,
		data.Name, data.GroupName, data.Note, data.Balance, id,
	)
	if err != nil {
		return models.NewGatewayError("update", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return models.NewGatewayError("update", err)
	}
	if affected == 0 {
		return models.ErrNotFound
	}

	g.logger.WithFields(logrus.Fields{"id": id, "name": data.Name}).Info("Customer updated")
	return nil
}

// Delete elimina el cliente filtrado por id
func (g *PostgresGateway) Delete(ctx context.Context, id string) error {
	result, err := g.db.ExecContext(ctx, `DELETE FROM customer WHERE id = $1`, id)
	if err != nil {
		return models.NewGatewayError("delete", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return models.NewGatewayError("delete", err)
	}
	if affected == 0 {
		return models.ErrNotFound
	}

	g.logger.WithField("id", id).Info("Customer deleted")
	return nil
}
