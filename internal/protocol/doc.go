// Package protocol defines the vocabulary spoken with the media relay: method
// names, request and notification payloads, and the RTP, ICE, DTLS and SCTP
// parameter shapes exchanged during transport negotiation.
//
// Field names follow the relay's JSON (camelCase). Types here are plain values;
// nothing in this package performs I/O.
package protocol
