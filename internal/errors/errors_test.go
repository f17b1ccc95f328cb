// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindRecoverable(t *testing.T) {
	cases := []struct {
		k    Kind
		want bool
	}{
		{KindUserInput, true},
		{KindParseFailure, true},
		{KindTransientStorage, true},
		{KindCorruption, false},
		{KindResourceExhaustion, false},
		{KindFatal, false},
		{KindUnknown, false},
	}
	for _, c := range cases {
		if got := c.k.Recoverable(); got != c.want {
			t.Errorf("%s.Recoverable() = %v, want %v", c.k, got, c.want)
		}
	}
}

func TestNewUserErrorFormatsMessage(t *testing.T) {
	err := NewUserError("symbol %q not found", "Widget")
	if err.Error() != `symbol "Widget" not found` {
		t.Errorf("got %q, want a formatted message", err.Error())
	}
}

func TestNewFatalWrapsAndUnwraps(t *testing.T) {
	cause := fmt.Errorf("disk full")
	fatal := NewFatal("cannot open backend", cause)
	if !errors.Is(fatal, cause) {
		t.Error("expected errors.Is to see through FatalError to its cause")
	}
	if fatal.Error() != "cannot open backend: disk full" {
		t.Errorf("got %q, want message+cause", fatal.Error())
	}
}

func TestClassifyNilReturnsNil(t *testing.T) {
	if Classify(KindCorruption, nil) != nil {
		t.Error("Classify(kind, nil) should return nil, not a wrapped nil")
	}
}

func TestKindOfRoundTripsThroughClassify(t *testing.T) {
	err := Classify(KindCorruption, fmt.Errorf("integrity check failed"))
	if got := KindOf(err); got != KindCorruption {
		t.Errorf("got %s, want corruption", got)
	}
}

func TestKindOfDefaultsToTransientStorageForUnclassifiedErrors(t *testing.T) {
	if got := KindOf(fmt.Errorf("some plain error")); got != KindTransientStorage {
		t.Errorf("got %s, want the conservative transient_storage default", got)
	}
}

func TestKindOfSeesThroughWrappedClassifiedError(t *testing.T) {
	inner := Classify(KindResourceExhaustion, fmt.Errorf("disk full"))
	wrapped := fmt.Errorf("save batch failed: %w", inner)
	if got := KindOf(wrapped); got != KindResourceExhaustion {
		t.Errorf("got %s, want resource_exhaustion to survive one level of %%w wrapping", got)
	}
}
