package wwwauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBearer(t *testing.T) {
	tests := []struct {
		challenge string
		want      bool
	}{
		{"Bearer", true},
		{`Bearer realm="x"`, true},
		{"Bearer   authorization_uri=https://login.microsoftonline.com/T", true},
		{"Basic", false},
		{`Basic realm="x"`, false},
		{"Negotiate", false},
		{"Bearerx", false},
		{"bearer", false},
		{"", false},
	}
	for _, tc := range tests {
		t.Run(tc.challenge, func(t *testing.T) {
			assert.Equal(t, tc.want, IsBearer(tc.challenge))
		})
	}
}

func TestParams(t *testing.T) {
	tests := []struct {
		name      string
		challenge string
		want      map[string]string
	}{
		{
			name:      "quoted values",
			challenge: `Bearer msal-client-id="C" msal-tenant-id="T"`,
			want:      map[string]string{"msal-client-id": "C", "msal-tenant-id": "T"},
		},
		{
			name:      "comma terminated unquoted",
			challenge: "Bearer msal-client-id=C,msal-tenant-id=T",
			want:      map[string]string{"msal-client-id": "C", "msal-tenant-id": "T"},
		},
		{
			name:      "end terminated unquoted",
			challenge: "Bearer msal-client-id=C msal-tenant-id=T",
			want:      map[string]string{"msal-client-id": "C", "msal-tenant-id": "T"},
		},
		{
			name:      "quoted value with commas and spaces",
			challenge: `Bearer realm="a, b and c" msal-client-id=C`,
			want:      map[string]string{"realm": "a, b and c", "msal-client-id": "C"},
		},
		{
			name:      "mixed with authorization uri",
			challenge: `Bearer authorization_uri=https://login.microsoftonline.com/T/oauth2/authorize msal-client-id="C" msal-tenant-id="T"`,
			want: map[string]string{
				"authorization_uri": "https://login.microsoftonline.com/T/oauth2/authorize",
				"msal-client-id":    "C",
				"msal-tenant-id":    "T",
			},
		},
		{
			name:      "bare scheme",
			challenge: "Bearer",
			want:      map[string]string{},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Params(tc.challenge))
		})
	}
}

func TestExtractIdentity(t *testing.T) {
	t.Run("both parameters present", func(t *testing.T) {
		clientID, tenantID, ok := ExtractIdentity(`Bearer msal-client-id="C" msal-tenant-id="T"`)
		require.True(t, ok)
		assert.Equal(t, "C", clientID)
		assert.Equal(t, "T", tenantID)
	})

	t.Run("single parameter yields nothing", func(t *testing.T) {
		_, _, ok := ExtractIdentity(`Bearer msal-client-id="C"`)
		assert.False(t, ok)

		_, _, ok = ExtractIdentity(`Bearer msal-tenant-id="T"`)
		assert.False(t, ok)
	})

	t.Run("non bearer scheme yields nothing", func(t *testing.T) {
		_, _, ok := ExtractIdentity(`Basic msal-client-id="C" msal-tenant-id="T"`)
		assert.False(t, ok)
	})

	t.Run("each parameter shape", func(t *testing.T) {
		for _, challenge := range []string{
			`Bearer msal-client-id="C" msal-tenant-id="T"`,
			"Bearer msal-client-id=C,msal-tenant-id=T",
			"Bearer msal-client-id=C msal-tenant-id=T",
		} {
			clientID, tenantID, ok := ExtractIdentity(challenge)
			require.True(t, ok, "challenge %q", challenge)
			assert.Equal(t, "C", clientID)
			assert.Equal(t, "T", tenantID)
		}
	})
}
