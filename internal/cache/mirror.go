package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hypernova-labs/customer-console/internal/config"
	"github.com/hypernova-labs/customer-console/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Mirror persiste el último resultado conocido en Redis, para que una
// consola reiniciada renderice de inmediato mientras corre el primer
// refresh. Sus fallas se registran y nunca son fatales.
type Mirror struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *logrus.Logger
}

// NewMirror establece la conexión a Redis
func NewMirror(cfg *config.Config, logger *logrus.Logger) (*Mirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("error pinging Redis: %w", err)
	}

	return &Mirror{
		client: client,
		key:    cfg.Redis.MirrorKey,
		ttl:    cfg.Redis.MirrorTTL,
		logger: logger,
	}, nil
}

// Close cierra la conexión a Redis
func (m *Mirror) Close() error {
	return m.client.Close()
}

// HealthCheck verifica la salud de Redis
func (m *Mirror) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return m.client.Ping(ctx).Err()
}

// Store escribe el resultado del último refresh
func (m *Mirror) Store(ctx context.Context, rows []models.Customer) error {
	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("error encoding mirror payload: %w", err)
	}

	if err := m.client.Set(ctx, m.key, payload, m.ttl).Err(); err != nil {
		return fmt.Errorf("error storing mirror payload: %w", err)
	}

	m.logger.WithField("count", len(rows)).Debug("Customer snapshot mirrored to Redis")
	return nil
}

// Load recupera el último resultado conocido; retorna nil sin error cuando
// no hay snapshot guardado
func (m *Mirror) Load(ctx context.Context) ([]models.Customer, error) {
	payload, err := m.client.Get(ctx, m.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading mirror payload: %w", err)
	}

	var rows []models.Customer
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, fmt.Errorf("error decoding mirror payload: %w", err)
	}

	return rows, nil
}
