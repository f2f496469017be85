// Package duoapi talks the Duo Mobile push protocol: the one-time activation
// handshake that binds a fresh RSA key pair to a server-issued credential,
// and the signed fetch/reply calls used to answer push challenges.
//
// Every request runs over TLS with certificate validation on unless the
// client was explicitly constructed with validation disabled.
package duoapi
