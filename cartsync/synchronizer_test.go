package cartsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/models"
)

type fakeStore struct {
	mu        sync.Mutex
	carts     map[primitive.ObjectID][]models.CartLine
	orders    []models.Order
	writeErr  error
	insertErr error
	push      func([]models.CartLine)
}

func newFakeStore() *fakeStore {
	return &fakeStore{carts: make(map[primitive.ObjectID][]models.CartLine)}
}

func (f *fakeStore) ReadCart(ctx context.Context, userID primitive.ObjectID) ([]models.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.carts[userID], nil
}

func (f *fakeStore) WriteCart(ctx context.Context, userID primitive.ObjectID, lines []models.CartLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.carts[userID] = lines
	return nil
}

func (f *fakeStore) WatchCart(ctx context.Context, userID primitive.ObjectID, push func([]models.CartLine)) (func(), error) {
	f.mu.Lock()
	f.push = push
	f.mu.Unlock()
	return func() {}, nil
}

func (f *fakeStore) InsertOrder(ctx context.Context, order models.Order) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return primitive.NilObjectID, f.insertErr
	}
	f.orders = append(f.orders, order)
	return order.ID, nil
}

func (f *fakeStore) storedCart(userID primitive.ObjectID) []models.CartLine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.carts[userID]
}

func (f *fakeStore) storedOrders() []models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Order(nil), f.orders...)
}

func (f *fakeStore) pushSnapshot(lines []models.CartLine) {
	f.mu.Lock()
	push := f.push
	f.mu.Unlock()
	push(lines)
}

func newTestSession(t *testing.T, store *fakeStore) (*Synchronizer, primitive.ObjectID) {
	t.Helper()
	userID := primitive.NewObjectID()
	m := NewManager(store, store, zerolog.Nop())
	s, err := m.Session(context.Background(), userID)
	require.NoError(t, err)
	t.Cleanup(func() { m.Shutdown() })
	return s, userID
}

func product(name string, price int64) models.Product {
	return models.Product{
		ID:    primitive.NewObjectID(),
		Name:  name,
		Price: models.NewMoney(decimal.NewFromInt(price)),
	}
}

func validAddress() models.DeliveryAddress {
	return models.DeliveryAddress{
		Name:        "Asha Rao",
		HouseNumber: "14B",
		Street:      "MG Road",
		City:        "Mysuru",
		State:       "Karnataka",
		PostalCode:  "570001",
	}
}

func TestAddLineAggregatesQuantity(t *testing.T) {
	store := newFakeStore()
	s, userID := newTestSession(t, store)

	p := product("Tomatoes", 3)
	for i := 0; i < 4; i++ {
		s.AddLine(p)
	}

	view := s.View()
	require.Len(t, view.Lines, 1)
	require.Equal(t, p.ID, view.Lines[0].ProductID)
	require.Equal(t, 4, view.Lines[0].Quantity)
	require.Equal(t, 4, view.Count)

	require.Eventually(t, func() bool {
		stored := store.storedCart(userID)
		return len(stored) == 1 && stored[0].Quantity == 4
	}, time.Second, 5*time.Millisecond)
}

func TestRemoveLineDecrementsQuantity(t *testing.T) {
	store := newFakeStore()
	s, _ := newTestSession(t, store)

	p := product("Rice", 8)
	s.AddLine(p)
	s.AddLine(p)
	s.AddLine(p)
	s.RemoveLine(p.ID)

	view := s.View()
	require.Len(t, view.Lines, 1)
	require.Equal(t, 2, view.Lines[0].Quantity)
}

func TestRemoveLastUnitDropsLine(t *testing.T) {
	store := newFakeStore()
	s, userID := newTestSession(t, store)

	p := product("Milk", 2)
	s.AddLine(p)
	s.RemoveLine(p.ID)
	require.Empty(t, s.View().Lines)

	// removing again is a no-op
	s.RemoveLine(p.ID)
	require.Empty(t, s.View().Lines)

	require.Eventually(t, func() bool {
		return len(store.storedCart(userID)) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestAddThenRemoveIsIdentity(t *testing.T) {
	store := newFakeStore()
	s, _ := newTestSession(t, store)

	base := product("Bread", 4)
	s.AddLine(base)
	before := s.View()

	extra := product("Eggs", 6)
	s.AddLine(extra)
	s.RemoveLine(extra.ID)

	require.Equal(t, before.Lines, s.View().Lines)
}

func TestClearPersistsEmptyDocument(t *testing.T) {
	store := newFakeStore()
	s, userID := newTestSession(t, store)

	s.AddLine(product("Salt", 1))
	require.NoError(t, s.Clear(context.Background()))

	require.Empty(t, s.View().Lines)
	require.Empty(t, store.storedCart(userID))
}

func TestClearSurfacesPersistenceError(t *testing.T) {
	store := newFakeStore()
	s, _ := newTestSession(t, store)

	s.AddLine(product("Salt", 1))
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.carts) > 0
	}, time.Second, 5*time.Millisecond)

	store.mu.Lock()
	store.writeErr = errors.New("mongo down")
	store.mu.Unlock()

	err := s.Clear(context.Background())
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	// the local collection is still emptied
	require.Empty(t, s.View().Lines)
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	store := newFakeStore()
	s, _ := newTestSession(t, store)

	_, err := s.PlaceOrder(context.Background(), validAddress(), "9876543210")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "cart", verr.Field)
	require.Empty(t, store.storedOrders())
}

func TestPlaceOrderValidation(t *testing.T) {
	store := newFakeStore()
	s, _ := newTestSession(t, store)
	s.AddLine(product("Tea", 5))

	addr := validAddress()
	addr.City = ""
	_, err := s.PlaceOrder(context.Background(), addr, "9876543210")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "city", verr.Field)

	_, err = s.PlaceOrder(context.Background(), validAddress(), "12345")
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "contactNumber", verr.Field)

	_, err = s.PlaceOrder(context.Background(), validAddress(), "98765x3210")
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "contactNumber", verr.Field)

	addr = validAddress()
	addr.PostalCode = "5700" // must be exactly 6 digits
	_, err = s.PlaceOrder(context.Background(), addr, "9876543210")
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "postalCode", verr.Field)

	addr.PostalCode = "57000a"
	_, err = s.PlaceOrder(context.Background(), addr, "9876543210")
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "postalCode", verr.Field)

	// nothing written, cart untouched
	require.Empty(t, store.storedOrders())
	require.Len(t, s.View().Lines, 1)
}

func TestPlaceOrderWritesOrderAndClearsCart(t *testing.T) {
	store := newFakeStore()
	s, userID := newTestSession(t, store)

	a := product("Apples", 10)
	b := product("Bananas", 5)
	s.AddLine(a)
	s.AddLine(a)
	s.AddLine(b)

	id, err := s.PlaceOrder(context.Background(), validAddress(), "9876543210")
	require.NoError(t, err)
	require.False(t, id.IsZero())

	orders := store.storedOrders()
	require.Len(t, orders, 1)
	order := orders[0]
	require.Equal(t, id, order.ID)
	require.Equal(t, userID, order.UserID)
	require.Equal(t, models.OrderStatusPending, order.Status)
	require.Len(t, order.Lines, 2)
	require.True(t, order.Total.Decimal.Equal(decimal.NewFromInt(25)),
		"total = %s", order.Total.Decimal)
	require.Equal(t, "9876543210", order.ContactNumber)

	require.Empty(t, s.View().Lines)
	require.Empty(t, store.storedCart(userID))
}

func TestPlaceOrderInsertFailureLeavesCart(t *testing.T) {
	store := newFakeStore()
	s, _ := newTestSession(t, store)

	s.AddLine(product("Apples", 10))
	store.mu.Lock()
	store.insertErr = errors.New("ledger unavailable")
	store.mu.Unlock()

	_, err := s.PlaceOrder(context.Background(), validAddress(), "9876543210")
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	require.Len(t, s.View().Lines, 1)
}

// stallingStore holds the first document write back until released and
// records the unit count of each completed write.
type stallingStore struct {
	*fakeStore
	smu     sync.Mutex
	release chan struct{}
	first   bool
	writes  []int
}

func (s *stallingStore) WriteCart(ctx context.Context, userID primitive.ObjectID, lines []models.CartLine) error {
	s.smu.Lock()
	stall := !s.first
	s.first = true
	s.smu.Unlock()
	if stall {
		<-s.release
	}
	err := s.fakeStore.WriteCart(ctx, userID, lines)
	units := 0
	for _, line := range lines {
		units += line.Quantity
	}
	s.smu.Lock()
	s.writes = append(s.writes, units)
	s.smu.Unlock()
	return err
}

func TestPersistsStayInMutationOrder(t *testing.T) {
	base := newFakeStore()
	store := &stallingStore{fakeStore: base, release: make(chan struct{})}
	userID := primitive.NewObjectID()
	m := NewManager(store, base, zerolog.Nop())
	t.Cleanup(m.Shutdown)
	s, err := m.Session(context.Background(), userID)
	require.NoError(t, err)

	p := product("Apples", 3)
	s.AddLine(p) // this write is held back
	s.AddLine(p) // this one must not overtake it
	require.Equal(t, 2, s.View().Lines[0].Quantity)

	close(store.release)

	require.Eventually(t, func() bool {
		stored := base.storedCart(userID)
		return len(stored) == 1 && stored[0].Quantity == 2
	}, time.Second, 5*time.Millisecond)

	store.smu.Lock()
	require.Equal(t, []int{1, 2}, store.writes)
	store.smu.Unlock()

	// the authoritative document echoed back must not regress local state
	base.pushSnapshot(base.storedCart(userID))
	require.Eventually(t, func() bool {
		view := s.View()
		return len(view.Lines) == 1 && view.Lines[0].Quantity == 2
	}, time.Second, 5*time.Millisecond)
}

func TestRemotePushReplacesLocalState(t *testing.T) {
	store := newFakeStore()
	s, _ := newTestSession(t, store)

	s.AddLine(product("Local", 1))

	pushed := []models.CartLine{{
		ProductID: primitive.NewObjectID(),
		Name:      "Remote",
		UnitPrice: models.NewMoney(decimal.NewFromInt(7)),
		Quantity:  3,
	}}
	store.pushSnapshot(pushed)

	require.Eventually(t, func() bool {
		view := s.View()
		return len(view.Lines) == 1 && view.Lines[0].Name == "Remote" && view.Lines[0].Quantity == 3
	}, time.Second, 5*time.Millisecond)
}

func TestRemotePushDropsNonPositiveQuantities(t *testing.T) {
	store := newFakeStore()
	s, _ := newTestSession(t, store)

	store.pushSnapshot([]models.CartLine{
		{ProductID: primitive.NewObjectID(), Name: "Zero", Quantity: 0},
		{ProductID: primitive.NewObjectID(), Name: "Kept", UnitPrice: models.NewMoney(decimal.NewFromInt(2)), Quantity: 1},
	})

	require.Eventually(t, func() bool {
		view := s.View()
		return len(view.Lines) == 1 && view.Lines[0].Name == "Kept"
	}, time.Second, 5*time.Millisecond)
}

func TestSessionLoadsExistingCart(t *testing.T) {
	store := newFakeStore()
	userID := primitive.NewObjectID()
	store.carts[userID] = []models.CartLine{{
		ProductID: primitive.NewObjectID(),
		Name:      "Saved",
		UnitPrice: models.NewMoney(decimal.NewFromInt(9)),
		Quantity:  2,
	}}

	m := NewManager(store, store, zerolog.Nop())
	defer m.Shutdown()
	s, err := m.Session(context.Background(), userID)
	require.NoError(t, err)

	view := s.View()
	require.Len(t, view.Lines, 1)
	require.Equal(t, "Saved", view.Lines[0].Name)
	require.True(t, view.Total.Decimal.Equal(decimal.NewFromInt(18)))
}

func TestManagerReusesAndEndsSessions(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, store, zerolog.Nop())
	defer m.Shutdown()

	userID := primitive.NewObjectID()
	s1, err := m.Session(context.Background(), userID)
	require.NoError(t, err)
	s2, err := m.Session(context.Background(), userID)
	require.NoError(t, err)
	require.Same(t, s1, s2)

	_, err = m.Session(context.Background(), primitive.NilObjectID)
	require.ErrorIs(t, err, ErrAuthRequired)

	m.End(userID)
	s3, err := m.Session(context.Background(), userID)
	require.NoError(t, err)
	require.NotSame(t, s1, s3)
}

// gatedStore blocks cart reads for one user until released.
type gatedStore struct {
	*fakeStore
	gateUser primitive.ObjectID
	gate     chan struct{}
}

func (g *gatedStore) ReadCart(ctx context.Context, userID primitive.ObjectID) ([]models.CartLine, error) {
	if userID == g.gateUser {
		<-g.gate
	}
	return g.fakeStore.ReadCart(ctx, userID)
}

func TestSlowSessionLoadDoesNotBlockOtherUsers(t *testing.T) {
	base := newFakeStore()
	slowUser := primitive.NewObjectID()
	store := &gatedStore{fakeStore: base, gateUser: slowUser, gate: make(chan struct{})}
	m := NewManager(store, base, zerolog.Nop())
	t.Cleanup(m.Shutdown)

	slowDone := make(chan error, 1)
	go func() {
		_, err := m.Session(context.Background(), slowUser)
		slowDone <- err
	}()

	fastDone := make(chan error, 1)
	go func() {
		_, err := m.Session(context.Background(), primitive.NewObjectID())
		fastDone <- err
	}()

	// the second user's session comes up while the first load is stuck
	select {
	case err := <-fastDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("session creation blocked behind another user's cart load")
	}

	close(store.gate)
	require.NoError(t, <-slowDone)
}

func TestClosedSessionOperations(t *testing.T) {
	store := newFakeStore()
	s, _ := newTestSession(t, store)
	s.Close()

	// mutations are silent no-ops, awaited operations reject
	s.AddLine(product("Ghost", 1))
	s.RemoveLine(primitive.NewObjectID())
	require.ErrorIs(t, s.Clear(context.Background()), ErrAuthRequired)

	s.AddLine(product("More", 1))
	_, err := s.PlaceOrder(context.Background(), validAddress(), "9876543210")
	require.ErrorIs(t, err, ErrAuthRequired)
}
