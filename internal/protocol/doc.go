// Package protocol implements the Wyoming event codec: each event is a
// self-describing JSON header line, optionally followed by a raw binary
// payload of the length declared in the header. It also defines the typed
// events exchanged with ASR clients (describe/info, transcribe/transcript,
// audio-start/audio-chunk/audio-stop).
package protocol
