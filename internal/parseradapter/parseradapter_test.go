package parseradapter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ummon-dev/ummon/internal/entity"
)

const sampleSource = `package sample

import (
	"fmt"
	"strings"
)

type Greeter struct {
	Name string
}

func (g *Greeter) Greet() string {
	return fmt.Sprintf("hello %s", g.Name)
}

func topLevel(name string) string {
	return strings.ToUpper(name)
}
`

func TestDispatchResolvesGoExtension(t *testing.T) {
	p, ok := Dispatch("path/to/file.go")
	require.True(t, ok)
	require.NotNil(t, p)
}

func TestDispatchUnknownExtensionNotFound(t *testing.T) {
	_, ok := Dispatch("path/to/file.zig")
	require.False(t, ok)
}

func TestParseFunctionsFindsFunctionAndMethod(t *testing.T) {
	a := NewGoAdapter()
	defs, err := a.ParseFunctions([]byte(sampleSource), "sample.go")
	require.NoError(t, err)
	require.Len(t, defs, 2)

	var method, fn *FunctionDef
	for i := range defs {
		if defs[i].IsMethod {
			method = &defs[i]
		} else {
			fn = &defs[i]
		}
	}
	require.NotNil(t, method)
	require.NotNil(t, fn)
	require.Equal(t, "Greet", method.Name)
	require.Equal(t, "Greeter", method.ReceiverType)
	require.Equal(t, entity.VisibilityPublic, method.Visibility)
	require.Equal(t, "topLevel", fn.Name)
	require.Equal(t, entity.VisibilityPrivate, fn.Visibility)
}

func TestParseTypesFindsStructWithFields(t *testing.T) {
	a := NewGoAdapter()
	defs, err := a.ParseTypes([]byte(sampleSource), "sample.go")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	require.Equal(t, "Greeter", defs[0].Name)
	require.Equal(t, entity.KindStruct, defs[0].Kind)
	require.Len(t, defs[0].FieldIDs, 1)
}

func TestParseModulesExtractsImports(t *testing.T) {
	a := NewGoAdapter()
	mod, err := a.ParseModules([]byte(sampleSource), "sample.go")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"fmt", "strings"}, mod.ImportPaths)
}

func TestParseCallsAttributesCallToEnclosingFunction(t *testing.T) {
	a := NewGoAdapter()
	calls, err := a.ParseCalls([]byte(sampleSource), "sample.go")
	require.NoError(t, err)
	require.NotEmpty(t, calls)

	found := false
	for _, c := range calls {
		if c.CallerID == entity.ID("func:sample.go::topLevel") {
			found = true
		}
	}
	require.True(t, found)
}

func TestParseCallsResolvesSameFileCalleeToQualifiedID(t *testing.T) {
	const src = `package sample

func helper() string {
	return "x"
}

func topLevel(name string) string {
	return helper()
}
`
	a := NewGoAdapter()
	calls, err := a.ParseCalls([]byte(src), "sample.go")
	require.NoError(t, err)

	found := false
	for _, c := range calls {
		if c.CallerID == entity.ID("func:sample.go::topLevel") {
			require.Equal(t, entity.ID("func:sample.go::helper"), c.CalleeID)
			found = true
		}
	}
	require.True(t, found)
}

func TestFunctionDefEntityConversion(t *testing.T) {
	f := FunctionDef{
		ID:         "func:sample.go::topLevel",
		Name:       "topLevel",
		Visibility: entity.VisibilityPrivate,
		Location:   entity.Location{FilePath: "sample.go"},
	}
	e := f.Entity()
	require.Equal(t, entity.KindFunction, e.Kind)
	require.Equal(t, "topLevel", e.Name)
}

func TestCallRefRelationshipConversion(t *testing.T) {
	c := CallRef{CallerID: "func:a", CalleeID: "func:b"}
	r := c.Relationship()
	require.Equal(t, entity.RelCalls, r.Kind)
	require.Equal(t, entity.DefaultRelationshipID("func:a", "func:b", entity.RelCalls), r.ID)
}
