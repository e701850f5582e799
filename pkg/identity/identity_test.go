package identity

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/git-credential-msal/pkg/protocol"
)

type fakeSource struct {
	values map[string]string
}

func (f *fakeSource) GetURLMatch(_ context.Context, _, key string) (string, bool) {
	value, ok := f.values[key]
	return value, ok && value != ""
}

func parseRequest(t *testing.T, input string) *protocol.Request {
	t.Helper()
	req, err := protocol.Parse(strings.NewReader(input))
	require.NoError(t, err)
	return req
}

func TestResolvePrefersGitConfig(t *testing.T) {
	req := parseRequest(t, "protocol=https\nhost=dev.azure.com\n"+
		"wwwauth[]=Bearer msal-client-id=\"challenge-client\" msal-tenant-id=\"challenge-tenant\"\n")
	r := Resolver{Config: &fakeSource{values: map[string]string{
		clientIDKey: "config-client",
		tenantIDKey: "config-tenant",
	}}}

	id := r.Resolve(context.Background(), req)
	assert.Equal(t, Identity{ClientID: "config-client", TenantID: "config-tenant"}, id)
}

func TestResolveIncompleteConfigDiscardsBoth(t *testing.T) {
	req := parseRequest(t, "protocol=https\nhost=dev.azure.com\n"+
		"wwwauth[]=Bearer msal-client-id=\"challenge-client\" msal-tenant-id=\"challenge-tenant\"\n")
	r := Resolver{Config: &fakeSource{values: map[string]string{
		clientIDKey: "config-client",
	}}}

	id := r.Resolve(context.Background(), req)
	assert.Equal(t, Identity{ClientID: "challenge-client", TenantID: "challenge-tenant"}, id)
}

func TestResolveSkipsChallengeWithSingleParameter(t *testing.T) {
	req := parseRequest(t, "protocol=https\nhost=dev.azure.com\n"+
		"wwwauth[]=Bearer msal-client-id=\"only-client\"\n"+
		"wwwauth[]=Bearer msal-client-id=\"C\" msal-tenant-id=\"T\"\n")
	r := Resolver{Config: &fakeSource{}}

	id := r.Resolve(context.Background(), req)
	assert.Equal(t, Identity{ClientID: "C", TenantID: "T"}, id)
}

func TestResolveNothingFound(t *testing.T) {
	req := parseRequest(t, "protocol=https\nhost=dev.azure.com\nwwwauth[]=Bearer\n")
	r := Resolver{Config: &fakeSource{}}

	id := r.Resolve(context.Background(), req)
	assert.False(t, id.Complete())
	assert.Empty(t, id.ClientID)
	assert.Empty(t, id.TenantID)
}

func TestIdentityDerivations(t *testing.T) {
	id := Identity{ClientID: "C", TenantID: "T"}
	assert.Equal(t, "T_C", id.CacheName())
	assert.Equal(t, "https://login.microsoftonline.com/T", id.Authority())
	assert.True(t, id.Complete())
	assert.False(t, Identity{ClientID: "C"}.Complete())
}
