package strings

import "testing"

func TestCamelCase(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{[]string{"textField", "value"}, "textFieldValue"},
		{[]string{"set", "textField", "value"}, "setTextFieldValue"},
		{[]string{"my node", "on-change"}, "myNodeOnChange"},
		{[]string{"", "x"}, "x"},
		{[]string{"--"}, ""},
	}
	for _, tt := range tests {
		if got := CamelCase(tt.parts...); got != tt.want {
			t.Errorf("CamelCase(%q) = %q, want %q", tt.parts, got, tt.want)
		}
	}
}

func TestIdentifier(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"nameField", "nameField"},
		{"name field", "name_20_field"},
		{"name_field", "name_5f_field"},
		{"NameField", "_NameField"},
		{"1st", "_31_st"},
		{"größe", "gr_f6__df_e"},
	}
	seen := make(map[string]string)
	for _, tt := range tests {
		got := Identifier(tt.name)
		if got != tt.want {
			t.Errorf("Identifier(%q) = %q, want %q", tt.name, got, tt.want)
		}
		if other, dup := seen[UpperFirst(got)]; dup {
			t.Errorf("Identifier(%q) and Identifier(%q) collide after UpperFirst", tt.name, other)
		}
		seen[UpperFirst(got)] = tt.name
	}
}
