// Package broker performs the actual OIDC token acquisition against a
// Microsoft Entra authority: silent reuse and refresh, the interactive
// browser flow, and the device-code flow. It owns the serialized formats of
// the token cache and the discovery-response cache; everything outside this
// package treats those as opaque blobs.
package broker
