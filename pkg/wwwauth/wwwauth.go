// Package wwwauth parses WWW-Authenticate challenge values forwarded by git.
// Entra-fronted servers advertise the Bearer scheme and may attach the
// msal-client-id and msal-tenant-id parameters the helper needs to address
// the identity provider.
package wwwauth

import "strings"

const (
	scheme        = "Bearer"
	clientIDParam = "msal-client-id"
	tenantIDParam = "msal-tenant-id"
)

// IsBearer reports whether a challenge value advertises the Bearer scheme:
// the literal token alone, or the token followed by whitespace and challenge
// parameters. Any other leading token does not match.
func IsBearer(challenge string) bool {
	if challenge == scheme {
		return true
	}
	rest, ok := strings.CutPrefix(challenge, scheme)
	if !ok {
		return false
	}
	return rest[0] == ' ' || rest[0] == '\t'
}

// Params extracts the auth-param list from a challenge value into a map.
//
// The grammar is deliberately tolerant: after the scheme token, parameters
// are key=value pairs separated by commas and/or whitespace. Values are
// either double-quoted (and may contain commas and spaces) or unquoted and
// terminated by a comma, whitespace, or the end of the string. Unquoted
// values therefore must not contain commas or spaces; servers that need
// them have to use the quoted form.
func Params(challenge string) map[string]string {
	params := map[string]string{}
	rest, ok := strings.CutPrefix(challenge, scheme)
	if !ok {
		return params
	}

	i := 0
	for i < len(rest) {
		// Skip separators between parameters.
		for i < len(rest) && (rest[i] == ' ' || rest[i] == '\t' || rest[i] == ',') {
			i++
		}
		if i >= len(rest) {
			break
		}

		keyStart := i
		for i < len(rest) && rest[i] != '=' && rest[i] != ' ' && rest[i] != '\t' && rest[i] != ',' {
			i++
		}
		if i >= len(rest) || rest[i] != '=' {
			// Bare token without a value; ignore and continue.
			continue
		}
		key := rest[keyStart:i]
		i++ // consume '='

		var value string
		if i < len(rest) && rest[i] == '"' {
			i++
			valueStart := i
			for i < len(rest) && rest[i] != '"' {
				i++
			}
			value = rest[valueStart:i]
			if i < len(rest) {
				i++ // consume closing quote
			}
		} else {
			valueStart := i
			for i < len(rest) && rest[i] != ',' && rest[i] != ' ' && rest[i] != '\t' {
				i++
			}
			value = rest[valueStart:i]
		}
		if key != "" {
			params[key] = value
		}
	}
	return params
}

// ExtractIdentity pulls the Entra client and tenant ids out of a single
// challenge value. Both parameters must come from the same challenge; a
// challenge carrying only one of them yields nothing.
func ExtractIdentity(challenge string) (clientID, tenantID string, ok bool) {
	if !IsBearer(challenge) {
		return "", "", false
	}
	params := Params(challenge)
	clientID, tenantID = params[clientIDParam], params[tenantIDParam]
	if clientID == "" || tenantID == "" {
		return "", "", false
	}
	return clientID, tenantID, true
}
