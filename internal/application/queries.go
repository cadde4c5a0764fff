package application

import (
	"time"

	"github.com/bnema/stellar-site/internal/domain"
)

type SessionStatus struct {
	VisitorID string
	Snapshot  domain.IdentitySnapshot
	LastPage  string
	LastSeen  time.Time
}

func newSessionStatus(visitorID string, snapshot domain.IdentitySnapshot) SessionStatus {
	status := SessionStatus{
		VisitorID: visitorID,
		Snapshot:  snapshot,
		LastPage:  snapshot.CustomAttributes.String(domain.AttrLastPageURL),
	}
	if ts := snapshot.CustomAttributes.Int64(domain.AttrLastURLUpdateTime); ts > 0 {
		status.LastSeen = time.Unix(ts, 0).UTC()
	}
	return status
}
