package models

import "fmt"

// CreditSourceKind names the pool that funded an execution.
type CreditSourceKind string

const (
	SourceFree         CreditSourceKind = "free"
	SourceSubscription CreditSourceKind = "subscription"
	SourcePurchased    CreditSourceKind = "purchased"
	SourceGranted      CreditSourceKind = "granted"
	SourcePromotional  CreditSourceKind = "promotional"
)

// CreditSourceKinds lists every kind in selection priority order.
var CreditSourceKinds = []CreditSourceKind{
	SourceSubscription,
	SourcePurchased,
	SourceGranted,
	SourcePromotional,
	SourceFree,
}

// Valid reports whether k is a known kind.
func (k CreditSourceKind) Valid() bool {
	switch k {
	case SourceFree, SourceSubscription, SourcePurchased, SourceGranted, SourcePromotional:
		return true
	}
	return false
}

// CreditSource is the decided funding for one execution.
// PromotionalEntryID is set only for SourcePromotional.
type CreditSource struct {
	Kind               CreditSourceKind `json:"kind"`
	PromotionalEntryID string           `json:"promotional_entry_id,omitempty"`
	Unlimited          bool             `json:"unlimited,omitempty"`
}

// FreeSource returns the free daily allotment source.
func FreeSource() CreditSource { return CreditSource{Kind: SourceFree} }

// SubscriptionSource returns the plan allotment source.
func SubscriptionSource(unlimited bool) CreditSource {
	return CreditSource{Kind: SourceSubscription, Unlimited: unlimited}
}

// PurchasedSource returns the purchased pool source.
func PurchasedSource() CreditSource { return CreditSource{Kind: SourcePurchased} }

// GrantedSource returns the admin-granted pool source.
func GrantedSource() CreditSource { return CreditSource{Kind: SourceGranted} }

// PromotionalSource returns the source for one promotional entry.
func PromotionalSource(entryID string) CreditSource {
	return CreditSource{Kind: SourcePromotional, PromotionalEntryID: entryID}
}

// IsMetered reports whether the source is metered by counting execution
// records instead of decrementing a pool.
func (s CreditSource) IsMetered() bool {
	switch s.Kind {
	case SourceFree, SourceSubscription:
		return true
	case SourcePurchased, SourceGranted, SourcePromotional:
		return false
	}
	panic(fmt.Sprintf("models: unknown credit source %q", s.Kind))
}

func (s CreditSource) String() string {
	if s.Kind == SourcePromotional {
		return fmt.Sprintf("%s(%s)", s.Kind, s.PromotionalEntryID)
	}
	return string(s.Kind)
}
