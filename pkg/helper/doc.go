// Package helper composes the credential pipeline: protocol parsing,
// capability gating, identity resolution, cache-backed token acquisition,
// and the protocol response.
package helper
