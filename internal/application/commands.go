package application

import (
	"strings"

	"github.com/bnema/stellar-site/internal/domain"
)

type IdentifyCommand struct {
	VisitorID string
	Identity  domain.PartialIdentity
}

type ClearSessionCommand struct {
	VisitorID string
}

// VisitorIDValid rejects ids that cannot name a storage namespace.
func VisitorIDValid(visitorID string) bool {
	visitorID = strings.TrimSpace(visitorID)
	return visitorID != "" && !strings.ContainsAny(visitorID, `/\`) && visitorID != "." && visitorID != ".."
}
