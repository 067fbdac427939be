// Package server implements the protocol listener and the per-connection
// session state machine. Each accepted transport connection (TCP, Unix
// socket, or stdio) gets one session that assembles streamed audio into
// utterances, routes them to a recognition backend, and returns exactly
// one transcript per utterance. The package also provides the optional
// monitoring HTTP server.
package server
