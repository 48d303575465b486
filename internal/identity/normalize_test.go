package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercases ascii", input: "A@X.IO", want: "a@x.io"},
		{name: "trims whitespace", input: "  a@x.io\t\n", want: "a@x.io"},
		{name: "lowercases non-ascii letters", input: "ÉMILE@X.IO", want: "émile@x.io"},
		{name: "keeps sharp s distinct from ss", input: "Straße@x.com", want: "straße@x.com"},
		{name: "already normalized", input: "strasse@x.com", want: "strasse@x.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeEmail(tt.input))
		})
	}

	assert.NotEqual(t, NormalizeEmail("Straße@x.com"), NormalizeEmail("strasse@x.com"))
}
