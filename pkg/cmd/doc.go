// Package cmd defines the git-credential-msal command line: the credential
// command dispatch git drives, plus version and completion utilities.
package cmd
