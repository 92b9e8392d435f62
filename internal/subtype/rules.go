// Package subtype maps CRISPR-Cas subtype labels to the trimming rule that
// turns a spacer and its flanking repeats into the mature crRNA.
package subtype

// Rule trims one pre-crRNA unit. All slicing is on raw bases. Inputs shorter
// than a rule's offsets degrade to the whole string and never panic.
type Rule func(repeat5, spacer, repeat3 string) string

// FlankTrim keeps the last offset bases of the 5' repeat, the whole spacer and
// the 3' repeat minus its last offset bases. A 3' repeat shorter than offset
// is kept whole. Type I and Type III processing.
func FlankTrim(offset int) Rule {
	return func(repeat5, spacer, repeat3 string) string {
		keep := len(repeat3) - offset
		if keep < 0 {
			keep = len(repeat3)
		}
		return suffix(repeat5, offset) + spacer + prefix(repeat3, keep)
	}
}

// SpacerThenRepeat keeps the last spacerLen bases of the spacer followed by the
// first repeatLen bases of the 3' repeat. The 5' repeat is unused. Type II
// processing.
func SpacerThenRepeat(spacerLen, repeatLen int) Rule {
	return func(_, spacer, repeat3 string) string {
		return suffix(spacer, spacerLen) + prefix(repeat3, repeatLen)
	}
}

// RepeatThenSpacer keeps the last repeatLen bases of the 3' repeat followed by
// the first spacerLen bases of the spacer. Type V processing.
func RepeatThenSpacer(repeatLen, spacerLen int) Rule {
	return func(_, spacer, repeat3 string) string {
		return suffix(repeat3, repeatLen) + prefix(spacer, spacerLen)
	}
}

// suffix returns the last n bases of s, or s when it is not longer than n.
func suffix(s string, n int) string {
	if n < 0 {
		n = 0
	}
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// prefix returns the first n bases of s, or s when it is not longer than n.
// A non-positive n yields the empty string.
func prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	return s[:n]
}
