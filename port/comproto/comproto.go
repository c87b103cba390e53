// Package comproto describes the commit protocol a store driver may implement,
// so the aggregate mapper can bracket its writes in a single transaction.
package comproto

import (
	"context"
	"fmt"

	"go.llib.dev/aggregate/pkg/errorkit"
)

type OnePhaseCommitProtocol interface {
	// BeginTx creates a context with a transaction.
	// All statements that receive this context should be executed within the given transaction in the context.
	BeginTx(context.Context) (context.Context, error)
	// CommitTx commits the current transaction.
	CommitTx(context.Context) error
	// RollbackTx rolls back the current transaction and causes all the updates made by the transaction to be discarded.
	RollbackTx(context.Context) error
}

func FinishTx(errp *error, commit, rollback func() error) {
	if errp == nil {
		panic(fmt.Errorf(`error pointer cannot be nil for Finish Tx methods`))
	}
	if *errp != nil {
		*errp = errorkit.Merge(*errp, rollback())
		return
	}
	*errp = commit()
}

func FinishOnePhaseCommit(errp *error, cm OnePhaseCommitProtocol, tx context.Context) {
	FinishTx(errp, func() error {
		return cm.CommitTx(tx)
	}, func() error {
		return cm.RollbackTx(tx)
	})
}
