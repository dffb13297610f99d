// Package cli provides the authgate command-line client.
//
// Commands map one to one onto the gateway protocol: pubkey, register, login,
// recover request, recover apply and call (a signed request relayed to the
// core service). Passwords are read from the terminal without echo, or from
// standard input when it is not a terminal.
package cli
