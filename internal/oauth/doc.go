// Package oauth maintains the Atlassian OAuth 2.0 bearer-token lifecycle
// for the wikid MCP facade: disk-persisted access/refresh tokens, early
// renewal ahead of expiry, and single-flight refresh against the
// Atlassian token endpoint.
package oauth
