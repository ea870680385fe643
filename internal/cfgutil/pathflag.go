// Copyright (c) 2016 The btcsuite developers
// Copyright (c) 2024 The etfbank developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

import "github.com/lightningnetwork/lnd/fn/v2"

// PathFlag is a filesystem path option that keeps its default apart from a
// path given on the command line or in the config file.  Paths derived from
// the application data directory only follow it when the user moved it.
//
// Parsed values are cleaned and have ~ and environment variables expanded.
type PathFlag struct {
	fallback string
	given    fn.Option[string]
}

// NewPathFlag returns a flag that resolves to fallback until it is parsed.
func NewPathFlag(fallback string) *PathFlag {
	return &PathFlag{fallback: CleanAndExpandPath(fallback)}
}

// Path returns the parsed path, or the default when none was parsed.
func (p *PathFlag) Path() string {
	return p.given.UnwrapOr(p.fallback)
}

// IsSet reports whether a path was parsed.
func (p *PathFlag) IsSet() bool {
	return p.given.IsSome()
}

// SetDefault replaces the default.  A parsed path still takes precedence.
func (p *PathFlag) SetDefault(fallback string) {
	p.fallback = CleanAndExpandPath(fallback)
}

// String returns the resolved path.
func (p *PathFlag) String() string {
	return p.Path()
}

// MarshalFlag satisfies the flags.Marshaler interface.
func (p *PathFlag) MarshalFlag() (string, error) {
	return p.Path(), nil
}

// UnmarshalFlag satisfies the flags.Unmarshaler interface.
func (p *PathFlag) UnmarshalFlag(value string) error {
	p.given = fn.Some(CleanAndExpandPath(value))
	return nil
}
