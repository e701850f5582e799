// Package protocol implements the line-oriented key=value credential
// protocol git speaks to its helpers, including the multi-valued attribute
// semantics of gitcredentials(7), and the capability checks that decide
// whether this helper should answer at all.
package protocol
