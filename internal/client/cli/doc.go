// Package cli implements authctl, the command-line client of gophauth.
//
// Commands: register, login, logout, whoami, passwd, strength and ping.
// Passwords are read from the terminal without echo. login stores the
// access token in the token file; whoami and passwd send it back.
package cli
