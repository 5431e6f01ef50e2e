// SPDX-License-Identifier: Apache-2.0

// Copyright 2025 Binaek Sarkar
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package runtime

import "github.com/pkg/errors"

// Fatal request-level error kinds (spec §7): anything tagged with one of
// these aborts the in-flight decide() call rather than degrading to a
// fallback value.
var (
	ErrMissingField     = errors.New("missing field")
	ErrStackUnderflow   = errors.New("stack underflow")
	ErrDivisionByZero   = errors.New("division by zero")
	ErrReservedField    = errors.New("reserved field")
	ErrRuntimeType      = errors.New("runtime type error")
	ErrPlaceholderJump  = errors.New("unresolved placeholder jump offset reached the VM")
	ErrIllegalDecisionOp = errors.New("instruction not permitted in decision_instructions")
	ErrCancelled        = errors.New("decision cancelled")
)

// Taxon names the error-kind taxonomy of spec §7, used by transport
// layers to pick an appropriate status code.
type Taxon string

const (
	TaxonMissingField    Taxon = "MissingField"
	TaxonStackUnderflow  Taxon = "StackUnderflow"
	TaxonDivisionByZero  Taxon = "DivisionByZero"
	TaxonReservedField   Taxon = "ReservedField"
	TaxonRuntimeType     Taxon = "TypeError"
	TaxonCancelled       Taxon = "Cancelled"
	TaxonInternal        Taxon = "Internal"
)

// TaxonOf classifies err into the spec §7 taxonomy for transport mapping.
func TaxonOf(err error) Taxon {
	switch {
	case errors.Is(err, ErrMissingField):
		return TaxonMissingField
	case errors.Is(err, ErrStackUnderflow):
		return TaxonStackUnderflow
	case errors.Is(err, ErrDivisionByZero):
		return TaxonDivisionByZero
	case errors.Is(err, ErrReservedField):
		return TaxonReservedField
	case errors.Is(err, ErrRuntimeType):
		return TaxonRuntimeType
	case errors.Is(err, ErrCancelled):
		return TaxonCancelled
	default:
		return TaxonInternal
	}
}
