package notion

import (
	"unicode/utf8"
)

// RichText is a single text object inside a title or rich_text value.
type RichText struct {
	Type string      `json:"type"`
	Text TextContent `json:"text"`
}

// TextContent holds plain text content.
type TextContent struct {
	Content string `json:"content"`
}

// SelectOption names a select or multi_select option.
type SelectOption struct {
	Name string `json:"name"`
}

// DateValue is a date property value.
type DateValue struct {
	Start string `json:"start"`
}

// RichTextChunks splits text into rich text objects of at most MaxRichTextRunes
// characters each. Empty text yields an empty slice, which clears the property.
func RichTextChunks(text string) []RichText {
	chunks := []RichText{}
	for text != "" {
		end := len(text)
		if utf8.RuneCountInString(text) > MaxRichTextRunes {
			end = 0
			for i := 0; i < MaxRichTextRunes; i++ {
				_, size := utf8.DecodeRuneInString(text[end:])
				end += size
			}
		}
		chunks = append(chunks, RichText{Type: "text", Text: TextContent{Content: text[:end]}})
		text = text[end:]
	}
	return chunks
}

// TitleValue builds a title property value.
func TitleValue(text string) map[string]any {
	return map[string]any{"title": RichTextChunks(text)}
}

// RichTextValue builds a rich_text property value.
func RichTextValue(text string) map[string]any {
	return map[string]any{"rich_text": RichTextChunks(text)}
}

// URLValue builds a url property value. An empty URL clears the property.
func URLValue(url string) map[string]any {
	if url == "" {
		return map[string]any{"url": nil}
	}
	return map[string]any{"url": url}
}

// NumberValue builds a number property value.
func NumberValue(n int) map[string]any {
	return map[string]any{"number": n}
}

// MultiSelectValue builds a multi_select property value.
func MultiSelectValue(names []string) map[string]any {
	options := make([]SelectOption, 0, len(names))
	for _, name := range names {
		options = append(options, SelectOption{Name: name})
	}
	return map[string]any{"multi_select": options}
}

// DateValueOf builds a date property value. An empty start clears the property.
func DateValueOf(start string) map[string]any {
	if start == "" {
		return map[string]any{"date": nil}
	}
	return map[string]any{"date": DateValue{Start: start}}
}
