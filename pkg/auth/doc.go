// Package auth produces authentication material for pending requests.
//
// Two interchangeable strategies implement CredentialProvider:
//
//   - Signer: stateless per-request HMAC-SHA256 signing with an
//     access key / secret key pair (ly-auth-v1 scheme).
//   - TokenProvider: a bearer token obtained from the identity
//     endpoint with an api key / secret key pair, cached until near
//     expiry and refreshed under a double-checked lock.
package auth
