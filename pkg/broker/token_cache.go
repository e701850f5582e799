package broker

import (
	"encoding/json"
	"time"
)

// Account identifies one signed-in principal in the token cache.
type Account struct {
	HomeAccountID string `json:"home_account_id"`
	Username      string `json:"username,omitempty"`
	Realm         string `json:"realm,omitempty"`
}

// credentialSet is the per-account credential material the broker keeps.
type credentialSet struct {
	IDToken      string    `json:"id_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

type tokenCacheData struct {
	Accounts    []Account                `json:"accounts"`
	Credentials map[string]credentialSet `json:"credentials"`
}

// TokenCache is the broker-owned serializable token state. Outside this
// package it is only moved around as an opaque blob; the dirty flag tells
// the persistence layer whether a write is worth doing.
type TokenCache struct {
	data    tokenCacheData
	changed bool
}

// NewTokenCache returns an empty cache.
func NewTokenCache() *TokenCache {
	return &TokenCache{data: tokenCacheData{Credentials: map[string]credentialSet{}}}
}

// Deserialize replaces the cache state with the blob's contents. An empty
// or unreadable blob resets to an empty cache; a stale or torn cache file
// must never prevent re-authentication.
func (c *TokenCache) Deserialize(blob []byte) {
	c.data = tokenCacheData{Credentials: map[string]credentialSet{}}
	c.changed = false
	if len(blob) == 0 {
		return
	}
	var data tokenCacheData
	if err := json.Unmarshal(blob, &data); err != nil {
		return
	}
	if data.Credentials == nil {
		data.Credentials = map[string]credentialSet{}
	}
	c.data = data
}

// Serialize renders the cache state for persistence.
func (c *TokenCache) Serialize() ([]byte, error) {
	return json.Marshal(c.data)
}

// Changed reports whether the in-memory state diverged from what was last
// deserialized.
func (c *TokenCache) Changed() bool { return c.changed }

// Accounts lists the cached accounts in insertion order.
func (c *TokenCache) Accounts() []Account {
	return append([]Account(nil), c.data.Accounts...)
}

// IDToken returns the cached OIDC identity token secret for an account, or
// "" when none is cached.
func (c *TokenCache) IDToken(homeAccountID string) string {
	return c.data.Credentials[homeAccountID].IDToken
}

func (c *TokenCache) credential(homeAccountID string) (credentialSet, bool) {
	cred, ok := c.data.Credentials[homeAccountID]
	return cred, ok
}

func (c *TokenCache) put(acct Account, cred credentialSet) {
	found := false
	for i, existing := range c.data.Accounts {
		if existing.HomeAccountID == acct.HomeAccountID {
			c.data.Accounts[i] = acct
			found = true
			break
		}
	}
	if !found {
		c.data.Accounts = append(c.data.Accounts, acct)
	}
	c.data.Credentials[acct.HomeAccountID] = cred
	c.changed = true
}
