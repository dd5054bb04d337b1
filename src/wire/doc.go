// Package wire defines the messages exchanged by overlay peers and their
// binary encoding.
//
// A Message is a tagged union: a MessageType and a body whose Go type is
// determined by the tag (HelloBody for Hello, PeersBody for Peers, etc.).
// On the wire every message is one frame:
//
//	+----------------+-----+----------------------+
//	| length (4, BE) | tag | msgpack encoded body |
//	+----------------+-----+----------------------+
//
// where length counts the tag byte and the body. Decoding a tag this version
// does not know is not an error: it yields a Message with a RawBody, which the
// overlay ignores. This keeps older nodes compatible with newer message kinds.
package wire
