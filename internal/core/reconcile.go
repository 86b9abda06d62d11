package core

import (
	"context"
	"fmt"
	"time"

	"opensilex/pkg/domain"
)

// SweepReport summarizes one reconciliation pass over a collection.
type SweepReport struct {
	Collection string    `json:"collection"`
	DryRun     bool      `json:"dry_run"`
	Scanned    int       `json:"scanned"`
	Orphans    []string  `json:"orphans"`
	Unresolved []string  `json:"unresolved,omitempty"`
	Deleted    int       `json:"deleted"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Reconciler removes document records whose graph record does not exist.
// Such orphans are left behind when a graph commit fails after the document
// commit succeeded.
type Reconciler struct {
	graph  domain.GraphStore
	docs   domain.DocumentStore
	logger Logger
	now    func() time.Time
}

// NewReconciler builds a reconciler. A nil now uses the wall clock.
func NewReconciler(graph domain.GraphStore, docs domain.DocumentStore, logger Logger, now func() time.Time) *Reconciler {
	if logger == nil {
		logger = noopLogger{}
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Reconciler{graph: graph, docs: docs, logger: logger, now: now}
}

// Sweep scans collection and deletes orphan documents in one session unless
// dryRun is set. Documents without a uri back-reference are reported as
// unresolved and kept.
func (r *Reconciler) Sweep(ctx context.Context, collection string, dryRun bool) (SweepReport, error) {
	report := SweepReport{Collection: collection, DryRun: dryRun, StartedAt: r.now()}
	docs, err := r.docs.Find(ctx, collection, domain.DocumentFilter{})
	if err != nil {
		return report, fmt.Errorf("scan %s: %w", collection, err)
	}
	report.Scanned = len(docs)
	for _, doc := range docs {
		if doc.URI == "" {
			report.Unresolved = append(report.Unresolved, doc.ID)
			continue
		}
		exists, err := r.graph.ExistsAny(ctx, "", []string{doc.URI})
		if err != nil {
			return report, fmt.Errorf("check %s: %w", doc.URI, err)
		}
		if !exists {
			report.Orphans = append(report.Orphans, doc.ID)
		}
	}
	if dryRun || len(report.Orphans) == 0 {
		report.FinishedAt = r.now()
		r.logger.Info("reconciliation sweep finished", "collection", collection, "scanned", report.Scanned, "orphans", len(report.Orphans), "dry_run", dryRun)
		return report, nil
	}

	sess, err := r.docs.StartSession(ctx)
	if err != nil {
		return report, err
	}
	deleted := 0
	for _, id := range report.Orphans {
		existed, err := sess.DeleteOne(ctx, collection, id)
		if err != nil {
			r.rollback(ctx, sess)
			return report, fmt.Errorf("delete orphan %s: %w", id, err)
		}
		if existed {
			deleted++
		}
	}
	if err := sess.Commit(ctx); err != nil {
		r.rollback(ctx, sess)
		return report, fmt.Errorf("commit sweep: %w", err)
	}
	report.Deleted = deleted
	report.FinishedAt = r.now()
	r.logger.Info("reconciliation sweep finished", "collection", collection, "scanned", report.Scanned, "orphans", len(report.Orphans), "deleted", deleted)
	return report, nil
}

func (r *Reconciler) rollback(ctx context.Context, sess domain.DocumentSession) {
	if err := sess.Rollback(context.WithoutCancel(ctx)); err != nil {
		warning := domain.RollbackFailureWarning{Phase: domain.PhaseDocument, Cause: err}
		r.logger.Warn("rollback failed", "operation", "sweep", "warning", warning.Error())
	}
}
