package errors

import (
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisteredCodes(t *testing.T) {
	for code, info := range codes {
		prefix := map[ErrorCategory]string{
			CategoryCodeGen:  "GEN6",
			CategoryDocument: "DOC7",
			CategoryBinding:  "BND8",
		}[info.category]
		assert.True(t, strings.HasPrefix(string(code), prefix), "%s in category %s", code, info.category)
		assert.NotEmpty(t, info.title, code)
	}
	assert.Panics(t, func() { register(ErrNodeNotFound, CategoryDocument, SeverityError, "again", "") })
}

func TestLocationString(t *testing.T) {
	assert.Equal(t, "<document>", Location{}.String())
	assert.Equal(t, "n1", Location{NodeID: "n1"}.String())
	assert.Equal(t, "n1.props.value", Location{NodeID: "n1", Namespace: "props", Key: "value"}.String())
	assert.Equal(t, "<document>.attributes", Location{Namespace: "attributes"}.String())
}

func TestErrorJSON(t *testing.T) {
	loc := Location{NodeID: "n1", Namespace: "attributes", Key: "api"}
	err := NewNodeTypeMismatch(loc, "n2", "api", "page")

	out, jerr := err.ToJSON()
	require.NoError(t, jerr)

	var parsed CompilerError
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, ErrNodeTypeMismatch, parsed.Code)
	assert.Equal(t, CategoryDocument, parsed.Category)
	assert.Equal(t, SeverityError, parsed.Severity)
	assert.Equal(t, loc, parsed.Location)
	assert.Equal(t, "api", parsed.Expected)
	assert.Equal(t, "page", parsed.Actual)
	assert.Equal(t, "https://docs.pagecraft.dev/errors/DOC701", parsed.Documentation)
}

func TestFormatError(t *testing.T) {
	err := NewUndeclaredProp(Location{NodeID: "n7", Namespace: "props", Key: "colour"}, "Button", "colour").
		WithApp("shop").
		WithPage("p1")

	want := "❌ GEN602 undeclared prop (shop, page p1)\n" +
		"   at n7.props.colour\n" +
		"   Component 'Button' does not declare prop 'colour'\n" +
		"   💡 Remove the prop or declare it in the component's argTypes\n" +
		"   docs: https://docs.pagecraft.dev/errors/GEN602\n"
	assert.Equal(t, want, err.Format())
	assert.Equal(t, "n7.props.colour: error: Component 'Button' does not declare prop 'colour' [GEN602]", err.Error())
}

func TestErrorList(t *testing.T) {
	list := ErrorList{
		NewUnknownBindableKind(Location{NodeID: "b", Namespace: "props", Key: "x"}, "mystery"),
		NewUnknownComponent(Location{NodeID: "a"}, "Marquee"),
		NewFormatFailed(Location{}, "syntax"),
	}

	assert.Len(t, list.Errors(), 1)
	assert.Len(t, list.Warnings(), 2)
	assert.Error(t, list.Err())
	assert.NoError(t, list.Warnings().Err())
	assert.NoError(t, ErrorList(nil).Err())

	sorted := list.Warnings().Sorted()
	assert.Equal(t, ErrFormatFailed, sorted[0].Code)
	assert.Equal(t, ErrUnknownBindableKind, sorted[1].Code)

	text := list.Error()
	assert.True(t, strings.HasPrefix(text, "1 error(s), 2 warning(s)\n"), text)
	assert.Less(t, strings.Index(text, "GEN601"), strings.Index(text, "BND800"), "errors come first")

	out, err := ErrorList(nil).ToJSON()
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestWithCauseUnwraps(t *testing.T) {
	cause := stderrors.New("boom")
	err := NewCodeGenFailed(Location{}, "render").WithCause(cause)
	assert.ErrorIs(t, err, cause)

	var ce *CompilerError
	wrapped := stderrors.Join(stderrors.New("compile page"), err)
	require.ErrorAs(t, wrapped, &ce)
	assert.Equal(t, ErrCodeGenFailed, ce.Code)
}
