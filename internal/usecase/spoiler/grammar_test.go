package spoiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Token
	}{
		{
			name:    "self tag",
			content: "Ending:spoiler:He dies",
			want:    Token{Kind: TokenSelf, Topic: "Ending", Content: "He dies"},
		},
		{
			name:    "self tag trims topic only",
			content: "  Movie  :spoiler: Vader is Luke's father",
			want:    Token{Kind: TokenSelf, Topic: "Movie", Content: " Vader is Luke's father"},
		},
		{
			name:    "self tag empty topic",
			content: ":spoiler:Secret",
			want:    Token{Kind: TokenSelf, Topic: "", Content: "Secret"},
		},
		{
			name:    "self tag splits on first delimiter",
			content: "a:spoiler:b:spoiler:c",
			want:    Token{Kind: TokenSelf, Topic: "a", Content: "b:spoiler:c"},
		},
		{
			name:    "self tag wins over mark tag",
			content: "123:spoils:x:spoiler:y",
			want:    Token{Kind: TokenSelf, Topic: "123:spoils:x", Content: "y"},
		},
		{
			name:    "self tag without content",
			content: "Topic:spoiler:   ",
			want:    Token{},
		},
		{
			name:    "mark tag",
			content: "msg123:spoils:Plot twist",
			want:    Token{Kind: TokenMark, Topic: "Plot twist", MessageID: "msg123"},
		},
		{
			name:    "mark tag keeps topic whitespace",
			content: " msg123 :spoils: Plot twist ",
			want:    Token{Kind: TokenMark, Topic: " Plot twist ", MessageID: "msg123"},
		},
		{
			name:    "mark tag empty topic",
			content: "msg123:spoils:",
			want:    Token{Kind: TokenMark, Topic: "", MessageID: "msg123"},
		},
		{
			name:    "mark tag with sentence before delimiter",
			content: "look at msg123:spoils:x",
			want:    Token{},
		},
		{
			name:    "mark tag without id",
			content: ":spoils:x",
			want:    Token{},
		},
		{name: "plain message", content: "Hi there", want: Token{}},
		{name: "empty message", content: "", want: Token{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.content))
		})
	}
}
