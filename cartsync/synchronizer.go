// Package cartsync keeps one in-process view of a signed-in user's cart
// consistent with its remote document. Mutations apply to local state
// first and persist asynchronously; the store's change stream pushes the
// authoritative document back and replaces local state wholesale, so the
// last document written wins across devices.
package cartsync

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/models"
)

// Synchronizer owns the cart of one user session. A single goroutine
// applies both local commands and remote snapshots, so the two event
// sources never race over the line collection.
type Synchronizer struct {
	userID primitive.ObjectID
	store  CartStore
	ledger OrderLedger
	log    zerolog.Logger

	cmds      chan func()
	remote    chan []models.CartLine
	done      chan struct{}
	closeOnce sync.Once
	stopWatch func()

	// persist queue, drained in order by a single worker so the
	// session's document writes can never overtake each other
	pmu    sync.Mutex
	pqueue []persistReq
	pwake  chan struct{}

	// owned by the run goroutine
	lines map[primitive.ObjectID]models.CartLine
}

// persistReq carries one full-document write. done is nil for the
// fire-and-forget line mutations and non-nil for awaited operations.
type persistReq struct {
	lines []models.CartLine
	done  chan error
}

// CartView is a point-in-time read of the cart.
type CartView struct {
	Lines []models.CartLine `json:"lines"`
	Total models.Money      `json:"total"`
	Count int               `json:"count"`
}

func newSynchronizer(ctx context.Context, userID primitive.ObjectID, store CartStore, ledger OrderLedger, log zerolog.Logger) (*Synchronizer, error) {
	lines, err := store.ReadCart(ctx, userID)
	if err != nil {
		return nil, &PersistenceError{Op: "load cart", Err: err}
	}

	s := &Synchronizer{
		userID: userID,
		store:  store,
		ledger: ledger,
		log:    log.With().Str("user", userID.Hex()).Logger(),
		cmds:   make(chan func()),
		remote: make(chan []models.CartLine, 1),
		done:   make(chan struct{}),
		pwake:  make(chan struct{}, 1),
		lines:  make(map[primitive.ObjectID]models.CartLine),
	}
	s.replace(lines)

	stop, err := store.WatchCart(ctx, userID, func(snapshot []models.CartLine) {
		select {
		case s.remote <- snapshot:
		case <-s.done:
		}
	})
	if err != nil {
		return nil, &PersistenceError{Op: "subscribe cart", Err: err}
	}
	s.stopWatch = stop

	go s.run()
	go s.runPersist()
	return s, nil
}

func (s *Synchronizer) run() {
	for {
		select {
		case fn := <-s.cmds:
			fn()
		case snapshot := <-s.remote:
			s.replace(snapshot)
		case <-s.done:
			return
		}
	}
}

// do runs fn on the owning goroutine and waits until it has been
// applied. Reports false once the session is closed.
func (s *Synchronizer) do(fn func()) bool {
	ack := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(ack) }:
	case <-s.done:
		return false
	}
	select {
	case <-ack:
		return true
	case <-s.done:
		return false
	}
}

// replace swaps in an authoritative snapshot, discarding any optimistic
// local state. Lines without a positive quantity are dropped.
func (s *Synchronizer) replace(snapshot []models.CartLine) {
	next := make(map[primitive.ObjectID]models.CartLine, len(snapshot))
	for _, line := range snapshot {
		if line.Quantity < 1 {
			continue
		}
		next[line.ProductID] = line
	}
	s.lines = next
}

func (s *Synchronizer) snapshot() []models.CartLine {
	lines := make([]models.CartLine, 0, len(s.lines))
	for _, line := range s.lines {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Name < lines[j].Name })
	return lines
}

// AddLine puts one unit of the product in the cart, incrementing the
// existing line if the product is already there. The write to the store
// is fire-and-forget: failures are logged, local state stands.
func (s *Synchronizer) AddLine(product models.Product) {
	s.do(func() {
		line, ok := s.lines[product.ID]
		if ok {
			line.Quantity++
		} else {
			line = models.CartLine{
				ProductID: product.ID,
				Name:      product.Name,
				UnitPrice: product.Price,
				Quantity:  1,
			}
		}
		s.lines[product.ID] = line
		s.enqueuePersist(s.snapshot(), nil)
	})
}

// RemoveLine takes one unit of the product out of the cart. The line
// disappears when its quantity reaches zero. Unknown products are a
// no-op.
func (s *Synchronizer) RemoveLine(productID primitive.ObjectID) {
	s.do(func() {
		line, ok := s.lines[productID]
		if !ok {
			return
		}
		if line.Quantity > 1 {
			line.Quantity--
			s.lines[productID] = line
		} else {
			delete(s.lines, productID)
		}
		s.enqueuePersist(s.snapshot(), nil)
	})
}

// Clear empties the cart and waits for the empty document to be
// persisted. The write goes through the same queue as the line
// mutations, so an in-flight mutation persist cannot land after it.
// Local state is emptied even when the write fails.
func (s *Synchronizer) Clear(ctx context.Context) error {
	done := make(chan error, 1)
	if !s.do(func() {
		s.lines = make(map[primitive.ObjectID]models.CartLine)
		s.enqueuePersist(nil, done)
	}) {
		return ErrAuthRequired
	}
	select {
	case err := <-done:
		if err != nil {
			return &PersistenceError{Op: "clear cart", Err: err}
		}
		return nil
	case <-ctx.Done():
		return &PersistenceError{Op: "clear cart", Err: ctx.Err()}
	case <-s.done:
		return ErrAuthRequired
	}
}

// View returns the current lines with their derived total and unit
// count.
func (s *Synchronizer) View() CartView {
	var view CartView
	s.do(func() {
		view.Lines = s.snapshot()
		total := decimal.Zero
		for _, line := range view.Lines {
			total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
			view.Count += line.Quantity
		}
		view.Total = models.NewMoney(total)
	})
	if view.Lines == nil {
		view.Lines = []models.CartLine{}
		view.Total = models.NewMoney(decimal.Zero)
	}
	return view
}

// PlaceOrder snapshots the cart into an immutable pending order, writes
// it to the ledger and then clears the cart. The two writes are not
// atomic: a retry after a transient insert failure can duplicate the
// order (at-least-once). Validation failures leave the cart untouched.
func (s *Synchronizer) PlaceOrder(ctx context.Context, address models.DeliveryAddress, contactNumber string) (primitive.ObjectID, error) {
	if s.userID.IsZero() {
		return primitive.NilObjectID, ErrAuthRequired
	}
	if err := validateOrderInput(address, contactNumber); err != nil {
		return primitive.NilObjectID, err
	}

	var lines []models.CartLine
	if !s.do(func() { lines = s.snapshot() }) {
		return primitive.NilObjectID, ErrAuthRequired
	}
	if len(lines) == 0 {
		return primitive.NilObjectID, &ValidationError{Field: "cart", Message: "cart is empty"}
	}

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	order := models.Order{
		ID:            primitive.NewObjectID(),
		UserID:        s.userID,
		Lines:         lines,
		Total:         models.NewMoney(total),
		Address:       address,
		ContactNumber: contactNumber,
		Status:        models.OrderStatusPending,
		CreatedAt:     time.Now().UTC(),
	}

	id, err := s.ledger.InsertOrder(ctx, order)
	if err != nil {
		// Cart untouched so the user can retry.
		return primitive.NilObjectID, &PersistenceError{Op: "place order", Err: err}
	}

	if err := s.Clear(ctx); err != nil {
		// The order is durably recorded; a stale remote cart will be
		// corrected by the next successful write or push.
		s.log.Error().Err(err).Str("order", id.Hex()).Msg("cart clear after order failed")
	}
	return id, nil
}

// Close tears the session down: unsubscribes from the remote document
// and stops the owning and persist goroutines. Queued writes that have
// not started yet are dropped.
func (s *Synchronizer) Close() {
	s.closeOnce.Do(func() {
		if s.stopWatch != nil {
			s.stopWatch()
		}
		close(s.done)
	})
}

// enqueuePersist appends a full-document write to the session's persist
// queue. Called from the run goroutine, so queue order matches the
// order mutations were applied.
func (s *Synchronizer) enqueuePersist(lines []models.CartLine, done chan error) {
	s.pmu.Lock()
	s.pqueue = append(s.pqueue, persistReq{lines: lines, done: done})
	s.pmu.Unlock()
	select {
	case s.pwake <- struct{}{}:
	default:
	}
}

// runPersist drains the queue one write at a time. Fire-and-forget
// failures are logged without rollback or retry: the next mutation or
// remote push is the recovery path.
func (s *Synchronizer) runPersist() {
	for {
		select {
		case <-s.pwake:
		case <-s.done:
			return
		}
		for {
			s.pmu.Lock()
			if len(s.pqueue) == 0 {
				s.pmu.Unlock()
				break
			}
			req := s.pqueue[0]
			s.pqueue = s.pqueue[1:]
			s.pmu.Unlock()

			err := s.store.WriteCart(context.Background(), s.userID, req.lines)
			if req.done != nil {
				req.done <- err
				continue
			}
			if err != nil {
				s.log.Error().Err(err).Int("lines", len(req.lines)).Msg("cart persist failed")
			}
		}
	}
}
