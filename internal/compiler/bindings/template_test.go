package bindings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     []Part
	}{
		{"plain", "hello", []Part{{PartText, "hello"}}},
		{"single ref", "{{ user.name }}", []Part{{PartRef, "user.name"}}},
		{"mixed", "Hi {{name}}!", []Part{{PartText, "Hi "}, {PartRef, "name"}, {PartText, "!"}}},
		{"unterminated", "a {{ b", []Part{{PartText, "a {{ b"}}},
		{"empty ref", "a {{ }} b", []Part{{PartText, "a {{ }} b"}}},
		{"adjacent", "{{a}}{{b}}", []Part{{PartRef, "a"}, {PartRef, "b"}}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.template))
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "state.a.b", Format(Parse("{{ a.b }}"), false, StateRef))
	assert.Equal(t, "`${state.a.b}`", Format(Parse("{{ a.b }}"), true, StateRef))
	assert.Equal(t, "`Hi ${state.name}!`", Format(Parse("Hi {{ name }}!"), false, StateRef))
	assert.Equal(t, "`cost: \\${x} \\`q\\``", Format(Parse("cost: ${x} `q`"), true, StateRef))
	assert.Equal(t, "``", Format(nil, false, StateRef))
}
