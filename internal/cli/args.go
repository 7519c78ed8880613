// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// args.go - Shared argument parsing for all polychat subcommands.

package cli

import "strings"

// =============================================================================
// ARG PARSER
// =============================================================================

// ArgParser handles the flag formats every subcommand accepts:
//
//	--flag value     long flag with space-separated value
//	--flag=value     long flag with equals sign
//	-f value         short flag with space-separated value
//	--flag           boolean flag
//
// The first positional argument is treated as the subcommand.
type ArgParser struct {
	flags      map[string]string
	boolFlags  map[string]bool
	positional []string
}

// NewArgParser parses raw arguments into flags and positionals.
func NewArgParser(raw []string) *ArgParser {
	p := &ArgParser{
		flags:     make(map[string]string),
		boolFlags: make(map[string]bool),
	}

	i := 0
	for i < len(raw) {
		arg := raw[i]
		if !strings.HasPrefix(arg, "-") {
			p.positional = append(p.positional, arg)
			i++
			continue
		}

		if name, value, ok := strings.Cut(arg, "="); ok {
			name = strings.TrimLeft(name, "-")
			if value == "true" || value == "false" {
				p.boolFlags[name] = value == "true"
			} else {
				p.flags[name] = value
			}
			i++
			continue
		}

		name := strings.TrimLeft(arg, "-")
		if i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "-") {
			p.flags[name] = raw[i+1]
			i += 2
		} else {
			p.boolFlags[name] = true
			i++
		}
	}
	return p
}

// Subcommand returns the first positional argument, or "" if none.
func (p *ArgParser) Subcommand() string {
	if len(p.positional) == 0 {
		return ""
	}
	return p.positional[0]
}

// Flag returns the value of a string flag, checking each given name.
func (p *ArgParser) Flag(names ...string) string {
	for _, n := range names {
		if v, ok := p.flags[n]; ok {
			return v
		}
	}
	return ""
}

// BoolFlag reports whether any of the given boolean flags was set.
func (p *ArgParser) BoolFlag(names ...string) bool {
	for _, n := range names {
		if p.boolFlags[n] {
			return true
		}
	}
	return false
}

// Positional returns positional arguments after the subcommand.
func (p *ArgParser) Positional() []string {
	if len(p.positional) <= 1 {
		return nil
	}
	return p.positional[1:]
}

// Query joins all positional arguments into one string. Commands that
// take free text (ask) use this so quoting is optional.
func (p *ArgParser) Query() string {
	return strings.Join(p.positional, " ")
}
