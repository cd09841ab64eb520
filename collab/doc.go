// Package collab implements the real-time collaboration relay.
//
// Store owns room presence: which users are in a room, through which
// sockets, and which sockets receive room broadcasts. Its operations are
// atomic per room. Hub speaks JSON envelopes ({"event": ..., "data": ...})
// over websockets and relays editor, terminal, file and voice-signalling
// events between the sockets of a room. The execution pipeline does not
// depend on this package.
package collab
