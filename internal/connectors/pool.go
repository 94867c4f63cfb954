package connectors

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Factory opens a connected Connector for a source type and DSN.
type Factory func(ctx context.Context, dbType, dsn string) (Connector, error)

// Pool shares one open connector per (type, dsn) pair across widgets.
type Pool struct {
	mu     sync.Mutex
	conns  map[string]Connector
	open   Factory
	logger *zap.Logger
}

func NewPool(logger *zap.Logger) *Pool {
	return NewPoolWithFactory(logger, OpenSQL)
}

func NewPoolWithFactory(logger *zap.Logger, open Factory) *Pool {
	return &Pool{
		conns:  make(map[string]Connector),
		open:   open,
		logger: logger,
	}
}

// OpenSQL is the default Factory.
func OpenSQL(ctx context.Context, dbType, dsn string) (Connector, error) {
	c, err := NewSQLConnector(dbType)
	if err != nil {
		return nil, err
	}
	if err := c.Connect(ctx, dsn); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the cached connector or opens a new one.
func (p *Pool) Get(ctx context.Context, dbType, dsn string) (Connector, error) {
	driver, err := DriverName(dbType)
	if err != nil {
		return nil, err
	}
	key := driver + "|" + dsn

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.conns[key]; ok {
		return c, nil
	}

	c, err := p.open(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	p.conns[key] = c
	p.logger.Info("Opened SQL data source", zap.String("driver", driver))
	return c, nil
}

// Query runs req on the connector for (dbType, dsn). A connector whose query
// fails its ping afterwards is evicted so the next call reconnects.
func (p *Pool) Query(ctx context.Context, dbType, dsn string, req QueryRequest) (*QueryResponse, error) {
	c, err := p.Get(ctx, dbType, dsn)
	if err != nil {
		return nil, err
	}
	resp, err := c.Query(ctx, req)
	if err != nil && c.TestConnection(ctx) != nil {
		p.evict(ctx, c)
	}
	return resp, err
}

func (p *Pool) evict(ctx context.Context, target Connector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, c := range p.conns {
		if c == target {
			delete(p.conns, key)
			if err := c.Disconnect(ctx); err != nil {
				p.logger.Warn("Failed to close SQL data source", zap.Error(err))
			}
		}
	}
}

// Len returns the number of open connectors.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Close disconnects every cached connector.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for key, c := range p.conns {
		if err := c.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.conns, key)
	}
	return firstErr
}
