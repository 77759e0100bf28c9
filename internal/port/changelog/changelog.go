package changelog

import (
	"context"
	"time"

	domainchangelog "github.com/agentfleet/coordinator/internal/domain/changelog"
)

// Reader answers "what changed since timestamp T" for the change
// aggregator (§4.6): entries ordered by (CreatedAt, Seq), the same pair
// InsertChangelog (see port/store) persists them with. The query is
// bounded on both ends — (since, sinceSeq) exclusive, (until, untilSeq)
// inclusive — so the caller can mint its next cursor from the same
// (until, untilSeq) pair it queried with rather than a fresh clock read
// taken after the query ran, which is what keeps the change feed from
// losing entries committed in between (§4.6, property #7).
type Reader interface {
	Since(ctx context.Context, projectID string, since time.Time, sinceSeq int64, until time.Time, untilSeq int64, kinds []domainchangelog.Kind, limit int) ([]domainchangelog.Entry, error)
}
