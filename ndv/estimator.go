// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package ndv provides an abstract, mergeable number-distinct-values
// (NDV) estimator. The aggregator treats estimators as opaque handles;
// this package supplies the one concrete sketch family (HyperLogLog)
// that the string-column aggregator is built against.
package ndv

import "fmt"

// Estimator is a mergeable sketch of the distinct values observed in
// some column. Implementations are value-typed handles over a fixed
// byte layout; CanMerge reports whether two estimators share that
// layout before Merge is attempted.
type Estimator interface {
	// CanMerge reports whether other is structurally compatible with
	// this estimator (same sketch family, same parameters). It must
	// be symmetric and reflexive.
	CanMerge(other Estimator) bool

	// Merge folds other into the receiver. Callers must check
	// CanMerge first; Merge panics if the estimators are incompatible.
	Merge(other Estimator)

	// Estimate returns the current distinct-value estimate.
	Estimate() uint64

	// Serialize returns the opaque byte encoding of the estimator,
	// suitable for FromSerialized to round-trip.
	Serialize() []byte
}

// FromSerialized decodes a serialized estimator produced by
// Estimator.Serialize. It returns an error if b is not a well-formed
// sketch encoding.
func FromSerialized(b []byte) (Estimator, error) {
	return fromSerializedHLL(b)
}

// EmptyLike returns a fresh, zeroed estimator with the same
// parameters as proto. The result is the identity element for Merge:
// for any e compatible with proto, e.Merge(EmptyLike(proto)) leaves e
// unchanged.
func EmptyLike(proto Estimator) Estimator {
	h, ok := proto.(*hyperLogLog)
	if !ok {
		panic(fmt.Sprintf("ndv.EmptyLike: unsupported estimator type %T", proto))
	}
	return emptyLikeHLL(h)
}
