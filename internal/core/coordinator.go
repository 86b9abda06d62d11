package core

import (
	"context"

	"opensilex/pkg/domain"
)

// GraphOp runs inside an open graph transaction.
type GraphOp func(ctx context.Context, tx domain.GraphTx) error

// DocumentOp runs inside an open document session.
type DocumentOp func(ctx context.Context, sess domain.DocumentSession) error

// TxState is the completion state of a TxContext.
type TxState int

// Transaction context states.
const (
	TxOpen TxState = iota
	TxGraphCommitted
	TxBothCommitted
	TxRolledBack
)

func (s TxState) String() string {
	switch s {
	case TxOpen:
		return "open"
	case TxGraphCommitted:
		return "graph_committed"
	case TxBothCommitted:
		return "both_committed"
	case TxRolledBack:
		return "rolled_back"
	}
	return "unknown"
}

// TxContext owns the store handles of one coordinated operation. It is
// created per call and never shared.
type TxContext struct {
	Op                string
	GraphTx           domain.GraphTx
	Session           domain.DocumentSession
	State             TxState
	DocumentCommitted bool
}

// Coordinator runs a graph write and an optional document write as one unit
// with ordered compensating rollback. The document side commits first so a
// crash between the commits leaves at worst an orphan document.
type Coordinator struct {
	graph  domain.GraphStore
	docs   domain.DocumentStore
	logger Logger
}

// NewCoordinator builds a coordinator over the two stores.
func NewCoordinator(graph domain.GraphStore, docs domain.DocumentStore, logger Logger) *Coordinator {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Coordinator{graph: graph, docs: docs, logger: logger}
}

// Run executes graphOp and, when non-nil, docOp. Any failure rolls back every
// transaction opened so far, newest first, and returns a *domain.CoordinationError.
func (c *Coordinator) Run(ctx context.Context, op string, graphOp GraphOp, docOp DocumentOp) error {
	_, err := c.execute(ctx, op, graphOp, docOp)
	return err
}

func (c *Coordinator) execute(ctx context.Context, op string, graphOp GraphOp, docOp DocumentOp) (*TxContext, error) {
	tc := &TxContext{Op: op}
	gtx, err := c.graph.Begin(ctx)
	if err != nil {
		tc.State = TxRolledBack
		return tc, c.fail(tc, domain.PhaseGraph, err)
	}
	tc.GraphTx = gtx
	c.logger.Debug("graph transaction opened", "operation", op)

	if err := graphOp(ctx, gtx); err != nil {
		c.rollback(ctx, tc, err)
		return tc, c.fail(tc, domain.PhaseGraph, err)
	}

	if docOp == nil {
		if err := gtx.Commit(ctx); err != nil {
			c.rollback(ctx, tc, err)
			return tc, c.fail(tc, domain.PhaseGraph, err)
		}
		tc.State = TxGraphCommitted
		c.logger.Debug("graph transaction committed", "operation", op)
		return tc, nil
	}

	sess, err := c.docs.StartSession(ctx)
	if err != nil {
		c.rollback(ctx, tc, err)
		return tc, c.fail(tc, domain.PhaseDocument, err)
	}
	tc.Session = sess
	c.logger.Debug("document session opened", "operation", op)

	if err := docOp(ctx, sess); err != nil {
		c.rollback(ctx, tc, err)
		return tc, c.fail(tc, domain.PhaseDocument, err)
	}
	if err := sess.Commit(ctx); err != nil {
		c.rollback(ctx, tc, err)
		return tc, c.fail(tc, domain.PhaseDocument, err)
	}
	tc.DocumentCommitted = true

	if err := gtx.Commit(ctx); err != nil {
		c.logger.Warn("document committed without graph record", "operation", op, "error", err)
		c.rollback(ctx, tc, err)
		return tc, c.fail(tc, domain.PhaseGraph, err)
	}
	tc.State = TxBothCommitted
	c.logger.Debug("coordinated transaction committed", "operation", op)
	return tc, nil
}

// rollback undoes the open handles, document side first. It runs detached
// from ctx cancellation; failures are logged and never replace cause.
func (c *Coordinator) rollback(ctx context.Context, tc *TxContext, cause error) {
	rctx := context.WithoutCancel(ctx)
	if tc.Session != nil && !tc.DocumentCommitted {
		if err := tc.Session.Rollback(rctx); err != nil {
			c.warnRollback(tc, domain.PhaseDocument, err)
		}
	}
	if tc.GraphTx != nil {
		if err := tc.GraphTx.Rollback(rctx, cause); err != nil {
			c.warnRollback(tc, domain.PhaseGraph, err)
		}
	}
	tc.State = TxRolledBack
	c.logger.Info("coordinated transaction rolled back", "operation", tc.Op, "cause", cause)
}

func (c *Coordinator) warnRollback(tc *TxContext, phase domain.Phase, err error) {
	warning := domain.RollbackFailureWarning{Phase: phase, Cause: err}
	c.logger.Warn("rollback failed", "operation", tc.Op, "phase", string(phase), "warning", warning.Error())
}

func (c *Coordinator) fail(tc *TxContext, phase domain.Phase, cause error) error {
	c.logger.Error("coordinated operation failed", "operation", tc.Op, "phase", string(phase), "error", cause)
	return &domain.CoordinationError{Phase: phase, Op: tc.Op, Cause: cause}
}
