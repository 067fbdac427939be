// Package audio handles per-utterance PCM accumulation and format
// conversion. It implements the in-memory utterance buffer with format
// latching and mono down-mix, WAV encoding/decoding, and chunking of PCM
// data for streaming.
package audio
