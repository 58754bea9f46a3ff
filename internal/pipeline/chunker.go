// Package pipeline 实现文档入库流水线：切分、嵌入、写入向量索引。
package pipeline

// SplitText 按固定长度将文本切分为不重叠的片段。
// 长度按字符（rune）计数，跨片段不丢字符，最后一段可以不足 size；
// 空文本返回空切片。
func SplitText(text string, size int) []string {
	if size <= 0 || text == "" {
		return []string{}
	}
	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
