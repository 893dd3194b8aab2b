// Package handshake reads the one-line startup message that carries the
// virtual files.
package handshake

// Payload is the wire shape of the handshake line:
//
//	{"vfs": {"files": {"img/a.png": "aGVsbG8=", ...}}}
type Payload struct {
	VFS VFS `json:"vfs"`
}

// VFS holds the base64-encoded file contents keyed by virtual path.
type VFS struct {
	Files map[string]string `json:"files"`
}
