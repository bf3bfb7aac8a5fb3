package main

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"
)

// Pool supplies the shared database handle.
type Pool interface {
	Get(ctx context.Context) (*sql.DB, error)
}

// DispatchOptions tunes request execution.
type DispatchOptions struct {
	// QueryTimeout bounds each request; zero disables the limit.
	QueryTimeout time.Duration
	// MaxRows caps rows per statement; zero means unlimited.
	MaxRows int
	// Strict runs the adapter's keyword guard after the SELECT prefix check.
	Strict bool
}

// Dispatcher maps operation requests to catalog entries and executes them.
// It holds no per-request state.
type Dispatcher struct {
	pool         Pool
	adapter      DBAdapter
	databaseName string
	opts         DispatchOptions
	logger       *slog.Logger

	ops    []*Operation
	byName map[string]*Operation
}

// NewDispatcher builds a dispatcher over the full catalog.
func NewDispatcher(pool Pool, adapter DBAdapter, databaseName string, opts DispatchOptions, logger *slog.Logger) *Dispatcher {
	byName := make(map[string]*Operation, len(catalog))
	for _, op := range catalog {
		byName[op.Name] = op
	}
	return &Dispatcher{
		pool:         pool,
		adapter:      adapter,
		databaseName: databaseName,
		opts:         opts,
		logger:       logger,
		ops:          catalog,
		byName:       byName,
	}
}

// Operations returns the catalog entries in listing order.
func (d *Dispatcher) Operations() []*Operation {
	return d.ops
}

// Dispatch runs one request and always returns an envelope; errors never
// escape as panics or returned errors.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Envelope {
	start := time.Now()
	payload, err := d.dispatch(ctx, req)
	if err != nil {
		d.logger.Warn("operation failed", "operation", req.Name, "duration", time.Since(start), "error", err)
		return wrapError(err)
	}
	d.logger.Debug("operation completed", "operation", req.Name, "duration", time.Since(start))
	return wrapSuccess(payload)
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) (any, error) {
	op, ok := d.byName[req.Name]
	if !ok {
		return nil, &UnknownOperationError{Name: req.Name}
	}

	args, err := bindArguments(op, req.Arguments)
	if err != nil {
		return nil, err
	}

	if op.Guard != "" {
		if err := d.checkStatement(args[op.Guard]); err != nil {
			return nil, err
		}
	}

	if d.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.QueryTimeout)
		defer cancel()
	}

	db, err := d.pool.Get(ctx)
	if err != nil {
		return nil, err
	}

	ex := &executor{
		db:           db,
		adapter:      d.adapter,
		databaseName: d.databaseName,
		maxRows:      d.opts.MaxRows,
	}
	return op.Run(ctx, ex, args)
}

// checkStatement is the read-only guard for free-form SQL.
func (d *Dispatcher) checkStatement(sqlQuery string) error {
	if !IsSelectStatement(sqlQuery) {
		return &ForbiddenStatementError{}
	}
	if d.opts.Strict {
		if err := d.adapter.ValidateQuery(sqlQuery); err != nil {
			return &ForbiddenStatementError{Reason: err.Error()}
		}
	}
	return nil
}

// bindArguments checks raw arguments against the operation's declared
// schema. Undeclared arguments are ignored. An empty string satisfies
// Required; the guard and LIKE patterns see it as given.
func bindArguments(op *Operation, raw map[string]any) (map[string]string, error) {
	args := make(map[string]string, len(op.Args))
	for _, decl := range op.Args {
		v, present := raw[decl.Name]
		if !present || v == nil {
			if decl.Required {
				return nil, &InvalidArgumentError{Name: decl.Name}
			}
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, &InvalidArgumentError{Name: decl.Name}
		}
		if decl.NonEmpty && strings.TrimSpace(s) == "" {
			return nil, &InvalidArgumentError{Name: decl.Name}
		}
		args[decl.Name] = s
	}
	return args, nil
}
