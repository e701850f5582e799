package protocol

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScalars(t *testing.T) {
	req, err := Parse(strings.NewReader("protocol=https\nhost=dev.azure.com\n"))
	require.NoError(t, err)
	assert.Equal(t, "https", req.Protocol())
	assert.Equal(t, "dev.azure.com", req.Host())
	assert.Equal(t, "https://dev.azure.com", req.URL())
}

func TestParseScalarLastWriteWins(t *testing.T) {
	req, err := Parse(strings.NewReader("host=first\nhost=second\n"))
	require.NoError(t, err)
	assert.Equal(t, "second", req.Get("host"))
}

func TestParseValueContainingEquals(t *testing.T) {
	req, err := Parse(strings.NewReader("wwwauth[]=Bearer realm=\"x\"\n"))
	require.NoError(t, err)
	values, ok := req.GetAll("wwwauth")
	require.True(t, ok)
	require.Equal(t, []string{`Bearer realm="x"`}, values)
}

func TestParseMultiValuedAccumulates(t *testing.T) {
	req, err := Parse(strings.NewReader("capability[]=authtype\ncapability[]=state\n"))
	require.NoError(t, err)
	values, ok := req.GetAll("capability")
	require.True(t, ok)
	assert.Equal(t, []string{"authtype", "state"}, values)
}

func TestParseMultiValuedEmptyResets(t *testing.T) {
	req, err := Parse(strings.NewReader("capability[]=a\ncapability[]=\ncapability[]=b\n"))
	require.NoError(t, err)
	values, ok := req.GetAll("capability")
	require.True(t, ok)
	assert.Equal(t, []string{"b"}, values)
}

func TestParseMultiValuedEmptyOnlyStillPresent(t *testing.T) {
	req, err := Parse(strings.NewReader("capability[]=\n"))
	require.NoError(t, err)
	values, ok := req.GetAll("capability")
	assert.True(t, ok)
	assert.Empty(t, values)
}

func TestParseMalformedLine(t *testing.T) {
	_, err := Parse(strings.NewReader("protocol=https\nnot a pair\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedLine)
}

func TestSupportsAuthType(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"absent", "protocol=https\n", false},
		{"present", "capability[]=authtype\n", true},
		{"other values only", "capability[]=state\n", false},
		{"among others", "capability[]=state\ncapability[]=authtype\n", true},
		{"reset then absent", "capability[]=authtype\ncapability[]=\n", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, err := Parse(strings.NewReader(tc.input))
			require.NoError(t, err)
			assert.Equal(t, tc.want, SupportsAuthType(req))
		})
	}
}

func TestOffersBearer(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"absent", "protocol=https\n", false},
		{"bearer", "wwwauth[]=Bearer\n", true},
		{"bearer with params", "wwwauth[]=Bearer realm=\"x\"\n", true},
		{"basic", "wwwauth[]=Basic realm=\"x\"\n", false},
		{"basic then bearer", "wwwauth[]=Basic realm=\"x\"\nwwwauth[]=Bearer\n", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, err := Parse(strings.NewReader(tc.input))
			require.NoError(t, err)
			assert.Equal(t, tc.want, OffersBearer(req))
		})
	}
}

func TestResponseWrite(t *testing.T) {
	var buf bytes.Buffer
	resp := &Response{Credential: "tok123", ExpiryUnix: 1767225600}
	require.NoError(t, resp.Write(&buf))
	assert.Equal(t,
		"capability[]=authtype\nauthtype=Bearer\ncredential=tok123\npassword_expiry_utc=1767225600\n",
		buf.String())
}
