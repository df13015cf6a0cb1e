// Package api defines the wire-level types shared by every Lingyun
// endpoint: request and response DTOs, the platform's numeric error
// codes, and the APIError taxonomy the retry layer classifies against.
package api
