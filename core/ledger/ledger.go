// Package ledger executes state-changing operations as atomic units of work.
//
// Each operation runs against a fresh state manager while holding exclusive
// locks on every address it declares. The staged writes, the signer nonce bump
// and the receipt are committed in a single storage batch; events are
// published only after that batch lands. A failing operation leaves no trace.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nftickets/core/events"
	"nftickets/core/state"
	"nftickets/storage"
)

// ErrInvalidOp is returned for operations missing required fields.
var ErrInvalidOp = errors.New("ledger: invalid operation")

// Op describes one unit of work.
type Op struct {
	// Name labels the operation in receipts, logs and events.
	Name string
	// Signer is the authorising account. System operations leave it zero and
	// skip nonce accounting.
	Signer [20]byte
	// Nonce must equal the signer's next expected nonce.
	Nonce uint64
	// Access lists every address the operation may write. The signer is
	// always included.
	Access [][20]byte
	// Reads lists addresses the operation only reads. They are shared with
	// other readers.
	Reads [][20]byte
	// Apply performs the state transition.
	Apply func(ctx context.Context, m *state.Manager) error
}

// Ledger serialises conflicting operations over a database.
type Ledger struct {
	db          storage.Database
	locks       *lockTable
	rentPerByte uint64
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time

	commitMu sync.Mutex
	seq      uint64
	emitter  events.Emitter
}

// Option customises a ledger.
type Option func(*Ledger)

// WithRentPerByte overrides the record deposit rate.
func WithRentPerByte(rate uint64) Option {
	return func(l *Ledger) {
		if rate > 0 {
			l.rentPerByte = rate
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock overrides the receipt timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// New opens a ledger over db, resuming the sequence counter from storage.
func New(db storage.Database, opts ...Option) (*Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("ledger: database required")
	}
	head, err := loadHead(db)
	if err != nil {
		return nil, err
	}
	l := &Ledger{
		db:          db,
		locks:       newLockTable(),
		rentPerByte: state.DefaultRentPerByte,
		logger:      slog.Default(),
		tracer:      otel.Tracer("nftickets/ledger"),
		now:         time.Now,
		seq:         head,
		emitter:     events.NoopEmitter{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// SetEmitter configures the sink for committed events.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	l.commitMu.Lock()
	defer l.commitMu.Unlock()
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	l.emitter = emitter
}

// Height returns the sequence number of the latest committed operation.
func (l *Ledger) Height() uint64 {
	l.commitMu.Lock()
	defer l.commitMu.Unlock()
	return l.seq
}

// View runs fn against a read-only snapshot manager. Writes staged by fn are
// discarded.
func (l *Ledger) View(fn func(m *state.Manager) error) error {
	m := l.manager()
	defer m.Discard()
	return fn(m)
}

// Receipt returns the receipt recorded at seq.
func (l *Ledger) Receipt(seq uint64) (*Receipt, error) {
	return loadReceipt(l.db, seq)
}

func (l *Ledger) manager() *state.Manager {
	m := state.NewManager(l.db)
	m.SetRentPerByte(l.rentPerByte)
	return m
}

// Execute applies op atomically and returns its receipt.
func (l *Ledger) Execute(ctx context.Context, op Op) (*Receipt, error) {
	op.Name = strings.TrimSpace(op.Name)
	if op.Name == "" || op.Apply == nil {
		return nil, ErrInvalidOp
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := l.tracer.Start(ctx, "ledger.execute", trace.WithAttributes(attribute.String("ledger.op", op.Name)))
	defer span.End()

	access := op.Access
	if op.Signer != ([20]byte{}) {
		access = append(append([][20]byte(nil), access...), op.Signer)
	}
	unlock, err := l.locks.acquire(ctx, access, op.Reads)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer unlock()

	m := l.manager()
	if op.Signer != ([20]byte{}) {
		if err := m.UseNonce(op.Signer, op.Nonce); err != nil {
			m.Discard()
			return nil, l.fail(span, op, err)
		}
	}
	if err := op.Apply(ctx, m); err != nil {
		m.Discard()
		return nil, l.fail(span, op, err)
	}

	l.commitMu.Lock()
	defer l.commitMu.Unlock()

	seq := l.seq + 1
	receipt := &Receipt{
		Seq:       seq,
		Op:        op.Name,
		Signer:    signerString(op.Signer),
		Nonce:     op.Nonce,
		Events:    m.Events(),
		Timestamp: l.now().Unix(),
	}
	// The receipt hash covers state writes only; the log entries are staged
	// after it is known but land in the same batch.
	root, err := l.commitWithReceipt(m, receipt)
	if err != nil {
		return nil, l.fail(span, op, err)
	}
	l.seq = seq
	receipt.Hash = hashString(root)

	for i, evt := range receipt.Events {
		l.emitter.Emit(events.Committed{Seq: seq, Op: op.Name, Index: i, Evt: evt})
	}
	span.SetAttributes(attribute.Int64("ledger.seq", int64(seq)))
	l.logger.Debug("ledger operation committed",
		slog.String("op", op.Name),
		slog.Uint64("seq", seq),
		slog.Int("events", len(receipt.Events)))
	return receipt, nil
}

func (l *Ledger) commitWithReceipt(m *state.Manager, receipt *Receipt) ([32]byte, error) {
	root, err := m.Digest()
	if err != nil {
		m.Discard()
		return [32]byte{}, err
	}
	receipt.Hash = hashString(root)
	encoded, err := json.Marshal(receipt)
	if err != nil {
		m.Discard()
		return [32]byte{}, fmt.Errorf("ledger: encode receipt: %w", err)
	}
	m.RawPut(receiptKey(receipt.Seq), encoded)
	m.RawPut(headKey, encodeSeq(receipt.Seq))
	if _, err := m.Commit(); err != nil {
		m.Discard()
		return [32]byte{}, err
	}
	return root, nil
}

func (l *Ledger) fail(span trace.Span, op Op, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	l.logger.Debug("ledger operation rejected",
		slog.String("op", op.Name),
		slog.String("error", err.Error()))
	return err
}
