package app

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hypernova-labs/customer-console/internal/cache"
	"github.com/hypernova-labs/customer-console/internal/gateway"
	"github.com/hypernova-labs/customer-console/internal/models"
	"github.com/hypernova-labs/customer-console/internal/session"
	"github.com/hypernova-labs/customer-console/internal/viewstate"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

// fakeData cuenta llamadas y permite inyectar fallas por operación
type fakeData struct {
	selectFn func(ctx context.Context) ([]models.Customer, error)
	insertFn func(ctx context.Context, data models.CustomerFormData) error
	updateFn func(ctx context.Context, id string, data models.CustomerFormData) error
	deleteFn func(ctx context.Context, id string) error

	selectCalls atomic.Int32
	insertCalls atomic.Int32
	updateCalls atomic.Int32
	deleteCalls atomic.Int32
}

func (f *fakeData) Select(ctx context.Context) ([]models.Customer, error) {
	f.selectCalls.Add(1)
	if f.selectFn != nil {
		return f.selectFn(ctx)
	}
	return nil, nil
}

func (f *fakeData) Insert(ctx context.Context, data models.CustomerFormData) error {
	f.insertCalls.Add(1)
	if f.insertFn != nil {
		return f.insertFn(ctx, data)
	}
	return nil
}

func (f *fakeData) Update(ctx context.Context, id string, data models.CustomerFormData) error {
	f.updateCalls.Add(1)
	if f.updateFn != nil {
		return f.updateFn(ctx, id, data)
	}
	return nil
}

func (f *fakeData) Delete(ctx context.Context, id string) error {
	f.deleteCalls.Add(1)
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

// deniedAuth simula un servicio de auth presente sin sesión activa
type deniedAuth struct{}

func (deniedAuth) CurrentSession(ctx context.Context) (*models.Session, error) { return nil, nil }
func (deniedAuth) SignUp(ctx context.Context, email, password string) error    { return nil }
func (deniedAuth) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	return nil, errors.New("not configured")
}
func (deniedAuth) SignOut(ctx context.Context) error { return nil }
func (deniedAuth) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	return nil, errors.New("not configured")
}

// grantedAuth acepta cualquier credencial
type grantedAuth struct{ deniedAuth }

func (grantedAuth) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	return &models.Session{
		UserID:      "u-1",
		Email:       email,
		AccessToken: "token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestController arma el orquestador sin auth (variante standalone)
func newTestController(t *testing.T, data gateway.DataGateway) *Controller {
	t.Helper()
	logger := testLogger()
	sessions := session.NewController(nil, logger)
	t.Cleanup(sessions.Close)

	c := NewController(data, sessions, viewstate.NewMachine(logger), cache.New(), nil, logger)
	t.Cleanup(c.Close)
	return c
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

// --- tests ---

func TestRefreshReplacesCacheNewestFirst(t *testing.T) {
	c := newTestController(t, gateway.NewMemoryGateway(gateway.SeedCustomers()))

	require.NoError(t, c.Refresh(context.Background()))

	records := c.Snapshot().Records
	require.Len(t, records, 3)
	assert.True(t, sort.SliceIsSorted(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	}))
}

func TestCacheStaysSortedAcrossMutationSequence(t *testing.T) {
	c := newTestController(t, gateway.NewMemoryGateway(gateway.SeedCustomers()))
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	c.CreateClicked()
	require.NoError(t, c.FormSubmitted(ctx, models.CustomerFormData{Name: "Dana Woo"}))

	require.NoError(t, c.EditClicked("2"))
	require.NoError(t, c.FormSubmitted(ctx, models.CustomerFormData{Name: "Bob S.", Balance: 250}))

	require.NoError(t, c.Delete(ctx, "3", true))

	records := c.Snapshot().Records
	require.Len(t, records, 3)
	assert.True(t, sort.SliceIsSorted(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	}))
}

func TestCreateSuccessReturnsToListWithRecord(t *testing.T) {
	c := newTestController(t, gateway.NewMemoryGateway(nil))
	ctx := context.Background()

	c.CreateClicked()
	require.Equal(t, viewstate.ViewForm, c.Snapshot().View)

	require.NoError(t, c.FormSubmitted(ctx, models.CustomerFormData{Name: "Dana Woo", Balance: 42}))

	snap := c.Snapshot()
	assert.Equal(t, viewstate.ViewList, snap.View)
	assert.Nil(t, snap.Editing)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "Dana Woo", snap.Records[0].Name)
	assert.NotEmpty(t, snap.Records[0].ID)
}

func TestEmptyNameNeverReachesGatewayNorChangesView(t *testing.T) {
	data := &fakeData{}
	c := newTestController(t, data)
	ctx := context.Background()

	c.CreateClicked()
	err := c.FormSubmitted(ctx, models.CustomerFormData{Name: "   "})

	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
	assert.Equal(t, int32(0), data.insertCalls.Load())
	assert.Equal(t, int32(0), data.updateCalls.Load())
	assert.Equal(t, int32(0), data.selectCalls.Load())
	assert.Equal(t, viewstate.ViewForm, c.Snapshot().View, "user stays in the form to correct and retry")
}

func TestUpdatePreservesIdentityScenario(t *testing.T) {
	seed := []models.Customer{{
		ID:        "1",
		Name:      "Alice",
		Balance:   1500,
		CreatedAt: time.Date(2023, 10, 1, 10, 0, 0, 0, time.UTC),
	}}
	c := newTestController(t, gateway.NewMemoryGateway(seed))
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	require.NoError(t, c.EditClicked("1"))
	require.NoError(t, c.FormSubmitted(ctx, models.CustomerFormData{
		Name:      "Alice B.",
		GroupName: "VIP",
		Note:      "",
		Balance:   1500,
	}))

	snap := c.Snapshot()
	assert.Equal(t, viewstate.ViewList, snap.View)
	require.Len(t, snap.Records, 1)

	got := snap.Records[0]
	assert.Equal(t, "1", got.ID)
	assert.Equal(t, "Alice B.", got.Name)
	assert.Equal(t, "VIP", got.GroupName)
	assert.Equal(t, "", got.Note)
	assert.Equal(t, 1500.0, got.Balance)
	assert.Equal(t, seed[0].CreatedAt, got.CreatedAt, "created_at never changes on update")
}

func TestEditClickedUnknownId(t *testing.T) {
	c := newTestController(t, gateway.NewMemoryGateway(nil))
	assert.ErrorIs(t, c.EditClicked("missing"), models.ErrNotFound)
	assert.Equal(t, viewstate.ViewList, c.Snapshot().View)
}

func TestDeleteDeclinedIsFullNoOp(t *testing.T) {
	rows := gateway.SeedCustomers()
	data := &fakeData{
		selectFn: func(ctx context.Context) ([]models.Customer, error) { return rows, nil },
	}
	c := newTestController(t, data)
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	before := c.Snapshot()
	err := c.Delete(ctx, "1", false)

	assert.ErrorIs(t, err, models.ErrConfirmationDeclined)
	assert.Equal(t, int32(0), data.deleteCalls.Load())
	assert.Equal(t, before, c.Snapshot())
}

func TestDeleteConfirmedRemovesRecord(t *testing.T) {
	c := newTestController(t, gateway.NewMemoryGateway(gateway.SeedCustomers()))
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	require.NoError(t, c.Delete(ctx, "2", true))

	snap := c.Snapshot()
	assert.Equal(t, viewstate.ViewList, snap.View)
	require.Len(t, snap.Records, 2)
	for _, row := range snap.Records {
		assert.NotEqual(t, "2", row.ID)
	}
}

func TestUnauthenticatedIntentsAreRejectedWithoutGatewayCalls(t *testing.T) {
	data := &fakeData{}
	logger := testLogger()
	sessions := session.NewController(deniedAuth{}, logger)
	t.Cleanup(sessions.Close)

	c := NewController(data, sessions, viewstate.NewMachine(logger), cache.New(), nil, logger)
	t.Cleanup(c.Close)
	ctx := context.Background()

	assert.ErrorIs(t, c.Refresh(ctx), models.ErrNotAuthenticated)
	assert.ErrorIs(t, c.Create(ctx, models.CustomerFormData{Name: "Dana"}), models.ErrNotAuthenticated)
	assert.ErrorIs(t, c.Update(ctx, "1", models.CustomerFormData{Name: "Dana"}), models.ErrNotAuthenticated)
	assert.ErrorIs(t, c.Delete(ctx, "1", true), models.ErrNotAuthenticated)

	assert.Equal(t, int32(0), data.selectCalls.Load())
	assert.Equal(t, int32(0), data.insertCalls.Load())
	assert.Equal(t, int32(0), data.updateCalls.Load())
	assert.Equal(t, int32(0), data.deleteCalls.Load())
}

func TestRefreshFailureKeepsPreviousRecords(t *testing.T) {
	rows := gateway.SeedCustomers()
	failing := false
	data := &fakeData{
		selectFn: func(ctx context.Context) ([]models.Customer, error) {
			if failing {
				return nil, models.NewGatewayError("select", errors.New("connection refused"))
			}
			return rows, nil
		},
	}
	c := newTestController(t, data)
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))
	before := c.Snapshot()

	failing = true
	err := c.Refresh(ctx)

	require.Error(t, err)
	assert.True(t, models.IsGateway(err))
	assert.Equal(t, before, c.Snapshot())
}

func TestMutationFailureStaysInForm(t *testing.T) {
	data := &fakeData{
		insertFn: func(ctx context.Context, form models.CustomerFormData) error {
			return models.NewGatewayError("insert", errors.New("permission denied"))
		},
	}
	c := newTestController(t, data)
	ctx := context.Background()

	c.CreateClicked()
	err := c.FormSubmitted(ctx, models.CustomerFormData{Name: "Dana"})

	require.Error(t, err)
	assert.True(t, models.IsGateway(err))
	assert.Equal(t, viewstate.ViewForm, c.Snapshot().View)
	assert.Equal(t, int32(0), data.selectCalls.Load(), "no refetch after a failed mutation")
}

func TestSecondMutationWhileInFlightIsRejected(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	data := &fakeData{
		insertFn: func(ctx context.Context, form models.CustomerFormData) error {
			close(started)
			<-unblock
			return nil
		},
	}
	c := newTestController(t, data)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		done <- c.Create(ctx, models.CustomerFormData{Name: "First"})
	}()

	<-started
	err := c.Create(ctx, models.CustomerFormData{Name: "Second"})
	assert.ErrorIs(t, err, models.ErrOperationInFlight)

	close(unblock)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), data.insertCalls.Load())
}

func TestFormSubmittedDispatchesByCarriedRecord(t *testing.T) {
	rows := gateway.SeedCustomers()
	var updatedID string
	data := &fakeData{
		selectFn: func(ctx context.Context) ([]models.Customer, error) { return rows, nil },
		updateFn: func(ctx context.Context, id string, form models.CustomerFormData) error {
			updatedID = id
			return nil
		},
	}
	c := newTestController(t, data)
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	// Sin registro llevado: alta
	c.CreateClicked()
	require.NoError(t, c.FormSubmitted(ctx, models.CustomerFormData{Name: "Dana"}))
	assert.Equal(t, int32(1), data.insertCalls.Load())
	assert.Equal(t, int32(0), data.updateCalls.Load())

	// Con registro llevado: edición del mismo id
	require.NoError(t, c.EditClicked("1"))
	require.NoError(t, c.FormSubmitted(ctx, models.CustomerFormData{Name: "Alice B."}))
	assert.Equal(t, int32(1), data.updateCalls.Load())
	assert.Equal(t, "1", updatedID)
}

func TestObserverIsNotifiedOnStateChange(t *testing.T) {
	c := newTestController(t, gateway.NewMemoryGateway(gateway.SeedCustomers()))

	changes, release := c.Subscribe()
	defer release()

	require.NoError(t, c.Refresh(context.Background()))

	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatal("expected a change notification after refresh")
	}
}

func TestSignInTriggersRefetchAndSignOutClearsRecords(t *testing.T) {
	logger := testLogger()
	sessions := session.NewController(grantedAuth{}, logger)
	t.Cleanup(sessions.Close)

	c := NewController(
		gateway.NewMemoryGateway(gateway.SeedCustomers()),
		sessions,
		viewstate.NewMachine(logger),
		cache.New(),
		nil,
		logger,
	)
	t.Cleanup(c.Close)

	ctx := context.Background()
	c.Start(ctx)
	assert.Empty(t, c.Snapshot().Records, "nothing to render before sign in")

	require.NoError(t, sessions.SignIn(ctx, "alice@example.com", "pw"))
	eventually(t, func() bool { return len(c.Snapshot().Records) == 3 },
		"expected records fetched after sign in")

	require.NoError(t, sessions.SignOut(ctx))
	eventually(t, func() bool { return len(c.Snapshot().Records) == 0 },
		"expected records discarded after sign out")
}
