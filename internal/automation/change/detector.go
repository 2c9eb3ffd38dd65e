// Package change detects additive and subtractive edits to inspection
// collections. One generic set diff backs every call site; collections differ
// only in how an item canonicalizes to a key.
package change

import (
	"fmt"
	"strings"

	inspection "inspection_portal/internal/inspections/domain"
)

// Diff reports whether a collection gained and/or lost members.
type Diff struct {
	Added   bool
	Removed bool
}

// Detect compares two versions of a collection using the canonical key
// function. Added is true iff after \ before is non-empty; Removed is true
// iff before \ after is non-empty. Duplicate keys collapse.
func Detect[T any](before, after []T, key func(T) string) Diff {
	beforeKeys := keySet(before, key)
	afterKeys := keySet(after, key)

	var d Diff
	for k := range afterKeys {
		if _, ok := beforeKeys[k]; !ok {
			d.Added = true
			break
		}
	}
	for k := range beforeKeys {
		if _, ok := afterKeys[k]; !ok {
			d.Removed = true
			break
		}
	}
	return d
}

func keySet[T any](items []T, key func(T) string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		// Empty keys mark items the call site does not track.
		if k := key(item); k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

// ServiceKey canonicalizes a pricing line item for the services/add-ons
// collection. Fee items are excluded so fee edits do not register as service
// changes; they go through FeeKey instead.
func ServiceKey(item inspection.PricingItem) string {
	switch item.Type {
	case inspection.PricingService:
		return "service:" + item.ServiceID.String()
	case inspection.PricingAddon:
		return fmt.Sprintf("addon:%s:%s", item.ServiceID, strings.ToLower(item.AddonName))
	default:
		return ""
	}
}

// FeeKey canonicalizes a fee line item; non-fee items collapse to the empty
// key and are ignored by the fee call site.
func FeeKey(item inspection.PricingItem) string {
	if item.Type != inspection.PricingFee {
		return ""
	}
	return "fee:" + strings.ToLower(item.Name)
}

// AgreementKey canonicalizes an agreement by id. Signing state is not part
// of the key: signing an agreement is not an add or remove.
func AgreementKey(a inspection.Agreement) string {
	return "agreement:" + a.AgreementID.String()
}

// DocumentKey canonicalizes an attached document by URL.
func DocumentKey(url string) string {
	return "document:" + url
}
