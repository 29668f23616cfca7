package models

import (
	"strconv"
	"strings"
	"time"
)

// Customer representa un registro de cliente tal como lo entrega el gateway
type Customer struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	GroupName string    `json:"group_name" db:"group_name"`
	Note      string    `json:"note" db:"note"`
	Balance   float64   `json:"balance" db:"balance"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CustomerFormData representa el subconjunto editable de Customer
// (excluye id y created_at, que nunca son editables por el usuario)
type CustomerFormData struct {
	Name      string  `json:"name"`
	GroupName string  `json:"group_name"`
	Note      string  `json:"note"`
	Balance   float64 `json:"balance"`
}

// Validate verifica los datos del formulario antes de tocar el gateway
func (f *CustomerFormData) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return NewValidationError("name", "Customer Name is required")
	}
	return nil
}

// ApplyTo aplica los campos editables sobre un cliente existente,
// preservando su id y created_at
func (f *CustomerFormData) ApplyTo(c Customer) Customer {
	c.Name = f.Name
	c.GroupName = f.GroupName
	c.Note = f.Note
	c.Balance = f.Balance
	return c
}

// DisplayGroup retorna el grupo a mostrar; "None" cuando está vacío
func (c *Customer) DisplayGroup() string {
	if strings.TrimSpace(c.GroupName) == "" {
		return "None"
	}
	return c.GroupName
}

// ParseBalance convierte el texto libre del formulario a balance numérico.
// Valores vacíos o no parseables valen 0.
func ParseBalance(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return v
}
