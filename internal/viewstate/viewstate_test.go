package viewstate

import (
	"io"
	"testing"
	"time"

	"github.com/hypernova-labs/customer-console/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testCustomer() models.Customer {
	return models.Customer{
		ID:        "1",
		Name:      "Alice Johnson",
		GroupName: "VIP",
		Balance:   1500,
		CreatedAt: time.Date(2023, 10, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestMachineStartsInList(t *testing.T) {
	m := NewMachine(testLogger())

	view, editing := m.Snapshot()
	assert.Equal(t, ViewList, view)
	assert.Nil(t, editing)
}

func TestCreateClickedEntersFormWithoutRecord(t *testing.T) {
	m := NewMachine(testLogger())

	m.ShowCreate()

	view, editing := m.Snapshot()
	assert.Equal(t, ViewForm, view)
	assert.Nil(t, editing)
}

func TestEditClickedCarriesRecord(t *testing.T) {
	m := NewMachine(testLogger())

	m.ShowEdit(testCustomer())

	view, editing := m.Snapshot()
	assert.Equal(t, ViewForm, view)
	require.NotNil(t, editing)
	assert.Equal(t, "1", editing.ID)

	// El snapshot entrega una copia: mutarla no toca el estado interno
	editing.Name = "mutated"
	again := m.Editing()
	require.NotNil(t, again)
	assert.Equal(t, "Alice Johnson", again.Name)
}

func TestSubmitSucceededReturnsToListAndClears(t *testing.T) {
	m := NewMachine(testLogger())
	m.ShowEdit(testCustomer())

	m.SubmitSucceeded()

	view, editing := m.Snapshot()
	assert.Equal(t, ViewList, view)
	assert.Nil(t, editing)
}

func TestCancelReturnsToListAndClears(t *testing.T) {
	m := NewMachine(testLogger())
	m.ShowEdit(testCustomer())

	m.Cancel()

	view, editing := m.Snapshot()
	assert.Equal(t, ViewList, view)
	assert.Nil(t, editing)
}

func TestInvalidEdgesAreIgnored(t *testing.T) {
	m := NewMachine(testLogger())

	// submit y cancel desde List no hacen nada
	m.SubmitSucceeded()
	m.Cancel()
	assert.Equal(t, ViewList, m.View())

	// create/edit repetidos dentro de Form no pisan el registro llevado
	m.ShowEdit(testCustomer())
	m.ShowCreate()
	m.ShowEdit(models.Customer{ID: "2", Name: "Bob Smith"})

	view, editing := m.Snapshot()
	assert.Equal(t, ViewForm, view)
	require.NotNil(t, editing)
	assert.Equal(t, "1", editing.ID)
}
