package domain

import "fmt"

// RecipientScope is the closed set of recipient kinds a report can target.
// The only implementations are GrantRecipient and AlternateEntity; callers
// switch on the concrete type and treat anything else as a programming error.
type RecipientScope interface {
	Type() RecipientType
	// Contains reports whether id is one of the report's attached recipients.
	Contains(id int64) bool
	IDs() []int64
	sealed()
}

// GrantRecipient scopes a report to grants.
type GrantRecipient struct {
	GrantIDs []int64
}

func (GrantRecipient) Type() RecipientType { return RecipientTypeGrant }
func (g GrantRecipient) IDs() []int64      { return g.GrantIDs }
func (g GrantRecipient) Contains(id int64) bool {
	return containsID(g.GrantIDs, id)
}
func (GrantRecipient) sealed() {}

// AlternateEntity scopes a report to non-grant ("other") entities.
type AlternateEntity struct {
	EntityIDs []int64
}

func (AlternateEntity) Type() RecipientType { return RecipientTypeOtherEntity }
func (a AlternateEntity) IDs() []int64      { return a.EntityIDs }
func (a AlternateEntity) Contains(id int64) bool {
	return containsID(a.EntityIDs, id)
}
func (AlternateEntity) sealed() {}

// ScopeFor builds the scope variant for a recipient type and its attached ids.
func ScopeFor(t RecipientType, ids []int64) (RecipientScope, error) {
	switch t {
	case RecipientTypeGrant:
		return GrantRecipient{GrantIDs: ids}, nil
	case RecipientTypeOtherEntity:
		return AlternateEntity{EntityIDs: ids}, nil
	default:
		return nil, fmt.Errorf("unknown activity recipient type %q", t)
	}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
