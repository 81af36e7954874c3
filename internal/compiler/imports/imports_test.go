package imports

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecraft-dev/pagecraft/internal/compiler/scope"
)

func TestAddDeduplicates(t *testing.T) {
	r := New(scope.New(nil))

	a := r.MustAdd("react", Namespace, "React")
	b := r.MustAdd("react", Namespace, "Other")
	assert.Equal(t, "React", a)
	assert.Equal(t, a, b)
}

func TestAliasesAvoidCollisions(t *testing.T) {
	r := New(scope.New(nil, "Button"))

	alias := r.MustAdd("@pagecraft/components", "Button", "")
	assert.Equal(t, "Button2", alias)

	other := r.MustAdd("./other", "Button", "")
	assert.Equal(t, "Button3", other)
}

func TestSeal(t *testing.T) {
	r := New(scope.New(nil))
	r.MustAdd("react", Namespace, "React")
	r.Seal()

	alias, err := r.Add("react", Namespace, "React")
	require.NoError(t, err)
	assert.Equal(t, "React", alias)

	_, err = r.Add("react", "useState", "")
	assert.True(t, errors.Is(err, ErrSealed))
}

func TestRender(t *testing.T) {
	r := New(scope.New(nil, "Text"))
	r.MustAdd("react", Namespace, "React")
	r.MustAdd("@pagecraft/components", "Stack", "")
	r.MustAdd("@pagecraft/core", "evalCode", "")
	r.MustAdd("@pagecraft/components", "Text", "")
	r.MustAdd("../components/Greeting.js", Default, "")
	r.MustAdd("@pagecraft/core", Namespace, "core")

	want := `import * as React from "react";
import { Stack, Text as Text2 } from "@pagecraft/components";
import * as core from "@pagecraft/core";
import { evalCode } from "@pagecraft/core";
import Greeting from "../components/Greeting.js";
`
	assert.Equal(t, want, r.Render())
}
