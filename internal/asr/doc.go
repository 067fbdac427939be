// Package asr defines the recognition backend interface and its loaders.
// Backends are opaque recognize(audio, language, sample_rate) capabilities:
// an in-process stub, an external recognizer process fed WAV over stdin,
// or a remote transcription HTTP API. Backends are not assumed reentrant;
// the registry serializes calls per instance.
package asr
