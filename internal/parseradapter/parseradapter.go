// Package parseradapter defines the external parser interface (§6) and
// dispatches source files to a concrete CodeParser by file extension.
// Adapters are trusted: their output feeds the entity/relationship model
// directly, with no further validation beyond Entity.Validate/
// Relationship.Validate.
package parseradapter

import (
	"path/filepath"
	"strings"

	"github.com/ummon-dev/ummon/internal/entity"
)

// FunctionDef is what a parser reports for one function or method.
type FunctionDef struct {
	ID               entity.ID
	Name             string
	ReceiverType     string
	Parameters       []entity.Parameter
	ReturnType       string
	Visibility       entity.Visibility
	IsMethod         bool
	ContainingEntity entity.ID
	Location         entity.Location
	Documentation    string
}

// TypeDef is what a parser reports for a class/interface/trait/struct/enum.
type TypeDef struct {
	ID            entity.ID
	Name          string
	Kind          entity.Kind
	FieldIDs      []entity.ID
	MethodIDs     []entity.ID
	SupertypeIDs  []entity.ID
	Visibility    entity.Visibility
	IsAbstract    bool
	Location      entity.Location
	Documentation string
}

// CallRef is one call site: a caller invoking a callee, both named by their
// best-effort resolved identifier (may be unqualified if static resolution
// is not possible from syntax alone).
type CallRef struct {
	CallerID entity.ID
	CalleeID entity.ID
}

// ModuleDef is what a parser reports for the file or module unit itself.
type ModuleDef struct {
	ID          entity.ID
	Path        string
	ChildIDs    []entity.ID
	ImportPaths []string
}

// CodeParser is the adapter interface each language implementation
// satisfies. Dispatched by file extension; outputs feed §3 records
// directly with no further validation beyond Entity.Validate and
// Relationship.Validate.
type CodeParser interface {
	ParseFunctions(src []byte, path string) ([]FunctionDef, error)
	ParseTypes(src []byte, path string) ([]TypeDef, error)
	ParseCalls(src []byte, path string) ([]CallRef, error)
	ParseModules(src []byte, path string) (ModuleDef, error)
}

// registry maps a lowercased file extension (including the leading dot) to
// the adapter that handles it.
var registry = map[string]CodeParser{}

// Register associates a CodeParser with one or more file extensions
// (e.g. ".go"). Intended to be called from adapter package init functions.
func Register(parser CodeParser, extensions ...string) {
	for _, ext := range extensions {
		registry[strings.ToLower(ext)] = parser
	}
}

// Dispatch returns the adapter registered for path's extension, if any.
func Dispatch(path string) (CodeParser, bool) {
	parser, ok := registry[strings.ToLower(filepath.Ext(path))]
	return parser, ok
}

func init() {
	Register(NewGoAdapter(), ".go")
}
