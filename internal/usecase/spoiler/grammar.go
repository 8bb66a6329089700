package spoiler

import "strings"

const (
	SelfDelimiter = ":spoiler:"
	MarkDelimiter = ":spoils:"
)

type TokenKind int

const (
	TokenNone TokenKind = iota
	TokenSelf
	TokenMark
)

// Token is the result of matching a message against the built-in syntaxes.
type Token struct {
	Kind      TokenKind
	Topic     string
	Content   string
	MessageID string
}

// Parse matches content against "<topic>:spoiler:<content>" and then
// "<messageId>:spoils:<topic>". The first syntax that matches wins.
func Parse(content string) Token {
	if topic, body, ok := strings.Cut(content, SelfDelimiter); ok {
		if strings.TrimSpace(body) == "" {
			return Token{}
		}
		return Token{
			Kind:    TokenSelf,
			Topic:   strings.TrimSpace(topic),
			Content: body,
		}
	}

	if id, topic, ok := strings.Cut(content, MarkDelimiter); ok {
		id = strings.TrimSpace(id)
		if id == "" || strings.ContainsAny(id, " \t\r\n") {
			return Token{}
		}
		return Token{
			Kind:      TokenMark,
			Topic:     topic,
			MessageID: id,
		}
	}

	return Token{}
}
