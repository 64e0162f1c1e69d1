package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Common test errors
var (
	ErrTest            = errors.New("test error")
	ErrConstructor     = errors.New("constructor error")
	ErrDisposal        = errors.New("disposal error")
	ErrAlreadyDisposed = errors.New("already disposed")
)

// TestService is a basic test service
type TestService struct {
	ID   string
	Data string
}

// NewTestService creates a new test service
func NewTestService() *TestService {
	return &TestService{
		ID:   uuid.NewString(),
		Data: "test",
	}
}

// TestLogger is a test logger interface
type TestLogger interface {
	Log(msg string)
	Logs() []string
}

// TestLoggerImpl implements TestLogger
type TestLoggerImpl struct {
	mu   sync.Mutex
	logs []string
}

func NewTestLogger() TestLogger {
	return &TestLoggerImpl{}
}

func (l *TestLoggerImpl) Log(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, msg)
}

func (l *TestLoggerImpl) Logs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]string, len(l.logs))
	copy(result, l.logs)
	return result
}

// TestDatabase is a test database interface
type TestDatabase interface {
	Query(sql string) string
}

// TestDatabaseImpl implements TestDatabase
type TestDatabaseImpl struct {
	Name string
}

func NewTestDatabase() TestDatabase {
	return &TestDatabaseImpl{Name: "testdb"}
}

func (d *TestDatabaseImpl) Query(sql string) string {
	return fmt.Sprintf("%s: %s", d.Name, sql)
}

// TestRepository depends on a logger and a database
type TestRepository struct {
	ID       string
	Logger   TestLogger
	Database TestDatabase
}

func NewTestRepository(logger TestLogger, db TestDatabase) *TestRepository {
	return &TestRepository{
		ID:       uuid.NewString(),
		Logger:   logger,
		Database: db,
	}
}

// TestPlugin is a contract registered several times
type TestPlugin interface {
	Name() string
}

// NamedPlugin implements TestPlugin.
type NamedPlugin struct {
	PluginName string
}

func NewNamedPlugin(name string) func() TestPlugin {
	return func() TestPlugin {
		return &NamedPlugin{PluginName: name}
	}
}

func (p *NamedPlugin) Name() string {
	return p.PluginName
}

// DisposalLog records the order in which disposables close.
type DisposalLog struct {
	mu    sync.Mutex
	order []string
}

func (l *DisposalLog) record(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.order = append(l.order, name)
}

// Order returns the names of closed disposables in closing order.
func (l *DisposalLog) Order() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]string, len(l.order))
	copy(result, l.order)
	return result
}

// TestDisposable is a test type that implements Disposable
type TestDisposable struct {
	Name string

	log          *DisposalLog
	disposeError error
	disposed     atomic.Bool
}

func NewTestDisposable(name string, log *DisposalLog) *TestDisposable {
	return &TestDisposable{Name: name, log: log}
}

func NewTestDisposableWithError(name string, log *DisposalLog, err error) *TestDisposable {
	return &TestDisposable{Name: name, log: log, disposeError: err}
}

func (d *TestDisposable) Close() error {
	if !d.disposed.CompareAndSwap(false, true) {
		return ErrAlreadyDisposed
	}

	if d.log != nil {
		d.log.record(d.Name)
	}
	return d.disposeError
}

func (d *TestDisposable) IsDisposed() bool {
	return d.disposed.Load()
}

// TestContextDisposable implements DisposableWithContext
type TestContextDisposable struct {
	mu       sync.Mutex
	ctx      context.Context
	disposed bool
	block    bool
}

func NewTestContextDisposable() *TestContextDisposable {
	return &TestContextDisposable{}
}

// NewBlockingContextDisposable returns a disposable whose Close waits for
// its context to end.
func NewBlockingContextDisposable() *TestContextDisposable {
	return &TestContextDisposable{block: true}
}

func (d *TestContextDisposable) Close(ctx context.Context) error {
	d.mu.Lock()
	d.ctx = ctx
	d.mu.Unlock()

	if d.block {
		<-ctx.Done()
		return ctx.Err()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.disposed = true
	return nil
}

func (d *TestContextDisposable) IsDisposed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disposed
}

func (d *TestContextDisposable) WasDisposedWithContext() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctx != nil
}

// CircularServiceA and CircularServiceB for testing circular dependencies
type CircularServiceA struct {
	B *CircularServiceB
}

type CircularServiceB struct {
	A *CircularServiceA
}

func NewCircularServiceA(b *CircularServiceB) *CircularServiceA {
	return &CircularServiceA{B: b}
}

func NewCircularServiceB(a *CircularServiceA) *CircularServiceB {
	return &CircularServiceB{A: a}
}

// SelfReferencing depends on itself.
type SelfReferencing struct {
	Self *SelfReferencing
}

func NewSelfReferencing(self *SelfReferencing) *SelfReferencing {
	return &SelfReferencing{Self: self}
}

// CountingConstructor counts its invocations.
type CountingConstructor struct {
	calls atomic.Int64
}

// Calls returns the number of invocations.
func (c *CountingConstructor) Calls() int {
	return int(c.calls.Load())
}

// NewService returns a constructor of *TestService that counts calls.
func (c *CountingConstructor) NewService() func() *TestService {
	return func() *TestService {
		c.calls.Add(1)
		return NewTestService()
	}
}
