// Package secrets removes credentials from file content before it is
// embedded in a prompt, using the gitleaks default rule set.
package secrets
