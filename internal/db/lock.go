package db

import (
	"context"
	"hash/fnv"

	"github.com/rotisserie/eris"
)

// AdvisoryKey maps a lock name onto the bigint key space of
// pg_advisory_lock.
func AdvisoryKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

// TryXactLock attempts a transaction-scoped advisory lock. The lock is
// released when the enclosing transaction ends.
func TryXactLock(ctx context.Context, q Querier, name string) (bool, error) {
	var ok bool
	if err := q.QueryRow(ctx, "SELECT pg_try_advisory_xact_lock($1)", AdvisoryKey(name)).Scan(&ok); err != nil {
		return false, eris.Wrapf(err, "db: advisory lock %s", name)
	}
	return ok, nil
}
