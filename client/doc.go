// Package client keeps a signed-in session on the consuming side of the auth
// API: the durable token store, the published identity and the per session
// UI cache that is dropped on sign out.
package client
