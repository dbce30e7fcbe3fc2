// Package local provides a self-hosted identity provider: bcrypt-hashed
// credentials persisted through the DocumentStore, HMAC-signed ID tokens, and
// synchronous identity-change notifications.
//
// Use it where the hosted identity service is unavailable (tests, on-premise
// deployments) while preserving featmy session behavior.
package local
