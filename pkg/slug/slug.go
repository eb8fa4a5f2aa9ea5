// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package slug generates ASCII URL slugs from arbitrary Unicode strings.
//
// # Usage
//
// Slugs are the human-readable comic identifiers in reader URLs (e.g.,
// "solo-leveling"). This package handles normalization, accent removal,
// and character sanitization so lookups tolerate raw titles as input.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// multiHyphen collapses consecutive hyphens left behind by sanitization.
var multiHyphen = regexp.MustCompile(`-{2,}`)

// From converts an arbitrary Unicode string into a URL-safe ASCII slug.
//
// # Transformation Pipeline
//
//  1. Normalizes to NFD (decomposes accented chars: é → e + combining acute).
//  2. Strips combining marks (accents) and lowercases.
//  3. Replaces anything outside [a-z0-9] with hyphens.
//  4. Collapses hyphen runs and trims leading/trailing hyphens.
func From(s string) string {
	// 1. Normalize and strip accents
	chain := transform.Chain(norm.NFD, transform.RemoveFunc(isMn))
	result, _, _ := transform.String(chain, s)

	// 2. Lowercase before sanitizing so the rune check stays simple
	result = strings.ToLower(result)

	// 3. Hyphenate everything that is not a letter or digit
	result = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, result)

	// 4. Clean up hyphenation
	result = multiHyphen.ReplaceAllString(result, "-")
	return strings.Trim(result, "-")
}

// isMn reports whether r is a Unicode non-spacing mark (e.g., accents).
func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}
