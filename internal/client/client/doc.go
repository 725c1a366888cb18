// Package client talks to the gophauth gRPC service on behalf of the CLI.
//
// GRPCClient attaches the current access token to every call through a
// unary interceptor and maps status codes to the sentinel errors below,
// keeping the server's message. Tokens can be persisted between runs with
// SaveToken and LoadToken.
package client
