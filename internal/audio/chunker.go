package audio

// SplitFrames splits interleaved PCM data into chunks of at most
// framesPerChunk frames, preserving frame boundaries. The returned slices
// alias the input data.
func SplitFrames(pcm []byte, format Format, framesPerChunk int) [][]byte {
	if framesPerChunk <= 0 || len(pcm) == 0 {
		return nil
	}

	chunkBytes := framesPerChunk * format.frameSize()
	chunks := make([][]byte, 0, (len(pcm)+chunkBytes-1)/chunkBytes)

	for start := 0; start < len(pcm); start += chunkBytes {
		end := start + chunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		chunks = append(chunks, pcm[start:end])
	}

	return chunks
}
