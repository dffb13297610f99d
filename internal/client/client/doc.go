// Package client speaks the gateway protocol over HTTP.
//
// # Overview
//
// A Client fetches and caches the gateway's RSA public key, encrypts
// registration and recovery secrets with it, and signs authenticated calls
// with the Signature and Nonce headers:
//
//	signature = base58(SHA256(login || decimal(nonce) || base58(SHA256(password))))
//
// Nonces are taken from the wall clock in milliseconds and forced to grow
// strictly within one Client, so two calls in the same millisecond still get
// distinct values.
//
// # Error Handling
//
// Gateway rejections come back as *APIError carrying the numeric code and the
// message of the error envelope. Transport failures match ErrUnavailable.
//
// A Client is safe for concurrent use.
package client
