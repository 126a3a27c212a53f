package theme

import (
	"strings"
)

// findBlockEnd finds the end of a CSS block (the matching closing brace)
func findBlockEnd(content string, startPos int) int {
	if startPos >= len(content) {
		return len(content)
	}

	openBrace := strings.Index(content[startPos:], "{")
	if openBrace == -1 {
		return len(content)
	}
	openBrace += startPos

	depth := 1
	pos := openBrace + 1
	for pos < len(content) && depth > 0 {
		switch content[pos] {
		case '{':
			depth++
		case '}':
			depth--
		}
		pos++
	}

	return pos
}

// ParseSheetMetadata parses the header comment of a rendered token sheet.
func ParseSheetMetadata(cssContent string) SheetMetadata {
	var meta SheetMetadata

	startIdx := strings.Index(cssContent, "/*")
	if startIdx == -1 {
		return meta
	}

	endIdx := strings.Index(cssContent[startIdx:], "*/")
	if endIdx == -1 {
		return meta
	}

	metadataBlock := cssContent[startIdx+2 : startIdx+endIdx]
	for _, line := range strings.Split(metadataBlock, "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "Source":
			meta.Source = value
		case "Schema":
			meta.Schema = value
		case "Scheme":
			meta.Scheme = value
		case "Checksum":
			meta.Checksum = value
		}
	}

	return meta
}

// ParseTokens reads the custom properties declared in the first :root block.
func ParseTokens(cssContent string) []Token {
	rootStart := strings.Index(cssContent, ":root")
	if rootStart == -1 {
		return nil
	}
	blockEnd := findBlockEnd(cssContent, rootStart)
	open := strings.Index(cssContent[rootStart:], "{")
	if open == -1 || rootStart+open+1 >= blockEnd {
		return nil
	}
	body := cssContent[rootStart+open+1 : blockEnd-1]

	var tokens []Token
	for _, decl := range strings.Split(body, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(decl), ":")
		if !ok || !strings.HasPrefix(name, "--") {
			continue
		}
		tokens = append(tokens, Token{
			Name:  strings.TrimSpace(name),
			Value: strings.TrimSpace(value),
		})
	}
	return tokens
}

// UpToDate reports whether existing was rendered from the same tokens as
// fresh, ignoring the source line.
func UpToDate(existing, fresh string) bool {
	a, b := ParseSheetMetadata(existing), ParseSheetMetadata(fresh)
	return a.Checksum != "" && a.Checksum == b.Checksum && a.Schema == b.Schema
}
