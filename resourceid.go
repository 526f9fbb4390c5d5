// Package dispatch implements a shared-resource parallel task dispatcher:
// tasks declare, through a data bundle, which resources they read shared
// and which they write exclusively, and Dispatch runs them in parallel
// while guaranteeing that the active set never has two tasks with
// conflicting access to the same resource.
package dispatch

import (
	"fmt"
	"reflect"
)

// ResourceID identifies one resource in a Store: its Go type plus a small
// integer variant, so a Store can hold several independent instances of
// the same type (e.g. two *RateLimiter resources tuned differently).
// Two ResourceIDs are equal iff both the type and the variant match.
type ResourceID struct {
	typ     reflect.Type
	variant int
}

// idFor computes the ResourceID for T at the given variant. Using
// reflect.TypeOf((*T)(nil)).Elem() instead of reflect.TypeOf(zero) keeps
// this correct even for interface-typed T, where a zero value carries no
// runtime type information.
func idFor[T any](variant int) ResourceID {
	return ResourceID{typ: reflect.TypeOf((*T)(nil)).Elem(), variant: variant}
}

// String renders the ResourceID for logs and error messages, e.g.
// "dispatch.Counter#0".
func (id ResourceID) String() string {
	if id.typ == nil {
		return fmt.Sprintf("<invalid>#%d", id.variant)
	}
	return fmt.Sprintf("%s#%d", id.typ, id.variant)
}
