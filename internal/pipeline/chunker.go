package pipeline

// splitText splits text into overlapping windows of size characters with
// overlap characters shared between consecutive windows. Sizes are measured
// in runes. The final window is whatever remains past the last full stride;
// text shorter than size yields a single chunk.
func splitText(text string, size, overlap int) []string {
	if text == "" || size <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	stride := size - overlap
	if stride <= 0 {
		stride = size
	}

	runes := []rune(text)
	var chunks []string
	for start := 0; ; start += stride {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
