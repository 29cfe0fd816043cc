package parseradapter

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/ummon-dev/ummon/internal/entity"
	"github.com/ummon-dev/ummon/internal/logging"
)

// GoAdapter parses Go source with tree-sitter's golang grammar.
type GoAdapter struct {
	parser *sitter.Parser
}

// NewGoAdapter constructs a GoAdapter with its own tree-sitter parser
// instance (parsers are not safe for concurrent use across goroutines).
func NewGoAdapter() *GoAdapter {
	p := sitter.NewParser()
	p.SetLanguage(golang.GetLanguage())
	return &GoAdapter{parser: p}
}

func (a *GoAdapter) parseTree(src []byte) (*sitter.Tree, error) {
	tree, err := a.parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse go source: %w", err)
	}
	return tree, nil
}

func nodeText(n *sitter.Node, src []byte) string {
	return n.Content(src)
}

func goVisibility(name string) entity.Visibility {
	if len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z' {
		return entity.VisibilityPublic
	}
	return entity.VisibilityPrivate
}

func nodePosition(p sitter.Point) *entity.Position {
	return &entity.Position{Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

// ParseFunctions extracts top-level function and method declarations.
func (a *GoAdapter) ParseFunctions(src []byte, path string) ([]FunctionDef, error) {
	tree, err := a.parseTree(src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var out []FunctionDef
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "function_declaration":
			if def, ok := a.extractFunction(n, src, path); ok {
				out = append(out, def)
			}
		case "method_declaration":
			if def, ok := a.extractMethod(n, src, path); ok {
				out = append(out, def)
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())

	logging.ParserDebug("go adapter: %s yielded %d function/method defs", path, len(out))
	return out, nil
}

// qualifiedFuncID and qualifiedMethodID are the single source of truth for
// the entity ID scheme extractFunction/extractMethod and ParseCalls both
// use, so a call's caller/callee ids resolve to the same ids those entities
// are saved under.
func qualifiedFuncID(path, name string) entity.ID {
	return entity.ID(fmt.Sprintf("func:%s::%s", path, name))
}

func qualifiedMethodID(path, receiverType, name string) entity.ID {
	return entity.ID(fmt.Sprintf("method:%s::%s.%s", path, receiverType, name))
}

func (a *GoAdapter) extractFunction(n *sitter.Node, src []byte, path string) (FunctionDef, bool) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return FunctionDef{}, false
	}
	name := nodeText(nameNode, src)
	return FunctionDef{
		ID:         qualifiedFuncID(path, name),
		Name:       name,
		Parameters: extractParameters(n.ChildByFieldName("parameters"), src),
		ReturnType: textOrEmpty(n.ChildByFieldName("result"), src),
		Visibility: goVisibility(name),
		Location:   locationOf(n, path),
	}, true
}

func (a *GoAdapter) extractMethod(n *sitter.Node, src []byte, path string) (FunctionDef, bool) {
	nameNode := n.ChildByFieldName("name")
	receiverNode := n.ChildByFieldName("receiver")
	if nameNode == nil || receiverNode == nil {
		return FunctionDef{}, false
	}
	name := nodeText(nameNode, src)
	receiver := strings.TrimSpace(nodeText(receiverNode, src))
	receiverType := stripPointerAndParamName(receiver)
	return FunctionDef{
		ID:               qualifiedMethodID(path, receiverType, name),
		Name:             name,
		ReceiverType:     receiverType,
		Parameters:       extractParameters(n.ChildByFieldName("parameters"), src),
		ReturnType:       textOrEmpty(n.ChildByFieldName("result"), src),
		Visibility:       goVisibility(name),
		IsMethod:         true,
		ContainingEntity: entity.ID(fmt.Sprintf("type:%s::%s", path, receiverType)),
		Location:         locationOf(n, path),
	}, true
}

// stripPointerAndParamName reduces a receiver clause like "(p *GoAdapter)"
// to its bare type name "GoAdapter".
func stripPointerAndParamName(receiver string) string {
	receiver = strings.TrimPrefix(receiver, "(")
	receiver = strings.TrimSuffix(receiver, ")")
	fields := strings.Fields(receiver)
	if len(fields) == 0 {
		return ""
	}
	last := fields[len(fields)-1]
	return strings.TrimPrefix(last, "*")
}

func extractParameters(paramsNode *sitter.Node, src []byte) []entity.Parameter {
	if paramsNode == nil {
		return nil
	}
	var params []entity.Parameter
	for i := 0; i < int(paramsNode.NamedChildCount()); i++ {
		decl := paramsNode.NamedChild(i)
		if decl.Type() != "parameter_declaration" {
			continue
		}
		typeName := textOrEmpty(decl.ChildByFieldName("type"), src)
		nameNodeCount := 0
		for j := 0; j < int(decl.NamedChildCount()); j++ {
			child := decl.NamedChild(j)
			if child.Type() == "identifier" {
				params = append(params, entity.Parameter{Name: nodeText(child, src), TypeName: typeName})
				nameNodeCount++
			}
		}
		if nameNodeCount == 0 {
			params = append(params, entity.Parameter{TypeName: typeName})
		}
	}
	return params
}

func textOrEmpty(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return nodeText(n, src)
}

func locationOf(n *sitter.Node, path string) entity.Location {
	return entity.Location{
		FilePath: path,
		Start:    nodePosition(n.StartPoint()),
		End:      nodePosition(n.EndPoint()),
	}
}

// ParseTypes extracts Go type declarations: every type_spec is reported,
// interface_type specs as KindInterface and all others as KindStruct.
func (a *GoAdapter) ParseTypes(src []byte, path string) ([]TypeDef, error) {
	tree, err := a.parseTree(src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var out []TypeDef
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "type_declaration" {
			for i := 0; i < int(n.NamedChildCount()); i++ {
				spec := n.NamedChild(i)
				if spec.Type() != "type_spec" {
					continue
				}
				if def, ok := a.extractTypeSpec(spec, src, path); ok {
					out = append(out, def)
				}
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())

	logging.ParserDebug("go adapter: %s yielded %d type defs", path, len(out))
	return out, nil
}

func (a *GoAdapter) extractTypeSpec(spec *sitter.Node, src []byte, path string) (TypeDef, bool) {
	nameNode := spec.ChildByFieldName("name")
	if nameNode == nil {
		return TypeDef{}, false
	}
	name := nodeText(nameNode, src)
	typeNode := spec.ChildByFieldName("type")

	kind := entity.KindStruct
	var fieldIDs []entity.ID
	if typeNode != nil && typeNode.Type() == "interface_type" {
		kind = entity.KindInterface
	}
	if typeNode != nil && typeNode.Type() == "struct_type" {
		fieldsNode := typeNode.ChildByFieldName("fields")
		if fieldsNode != nil {
			for j := 0; j < int(fieldsNode.NamedChildCount()); j++ {
				fieldDecl := fieldsNode.NamedChild(j)
				if fieldDecl.Type() != "field_declaration" {
					continue
				}
				fieldNameNode := fieldDecl.ChildByFieldName("name")
				if fieldNameNode == nil {
					continue
				}
				fieldName := nodeText(fieldNameNode, src)
				fieldIDs = append(fieldIDs, entity.ID(fmt.Sprintf("field:%s::%s.%s", path, name, fieldName)))
			}
		}
	}

	return TypeDef{
		ID:         entity.ID(fmt.Sprintf("type:%s::%s", path, name)),
		Name:       name,
		Kind:       kind,
		FieldIDs:   fieldIDs,
		Visibility: goVisibility(name),
		Location:   locationOf(spec, path),
	}, true
}

// ParseCalls extracts call expressions, attributing each to its enclosing
// function or method using the same qualified id extractFunction/
// extractMethod assign that entity (so CallRef.CallerID always resolves to
// a persisted entity). The callee is resolved against the functions and
// methods declared in this same file when possible; calls that can't be
// resolved this way (forward references, cross-file calls, calls through a
// selector like pkg.Fn or recv.Fn) are reported under the callee
// expression's source text (e.g. "helper" or "pkg.Fn"), left for the
// indexer to resolve or materialize as a placeholder.
func (a *GoAdapter) ParseCalls(src []byte, path string) ([]CallRef, error) {
	tree, err := a.parseTree(src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	localFuncs := map[string]entity.ID{}
	var collect func(n *sitter.Node)
	collect = func(n *sitter.Node) {
		switch n.Type() {
		case "function_declaration":
			if def, ok := a.extractFunction(n, src, path); ok {
				localFuncs[def.Name] = def.ID
			}
		case "method_declaration":
			if def, ok := a.extractMethod(n, src, path); ok {
				localFuncs[def.Name] = def.ID
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			collect(n.Child(i))
		}
	}
	collect(tree.RootNode())

	var out []CallRef
	var currentFunc entity.ID
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "function_declaration":
			if def, ok := a.extractFunction(n, src, path); ok {
				currentFunc = def.ID
			}
		case "method_declaration":
			if def, ok := a.extractMethod(n, src, path); ok {
				currentFunc = def.ID
			}
		case "call_expression":
			fnNode := n.ChildByFieldName("function")
			if fnNode != nil && currentFunc != "" {
				calleeName := nodeText(fnNode, src)
				calleeID, resolved := localFuncs[calleeName]
				if !resolved {
					calleeID = entity.ID(calleeName)
				}
				out = append(out, CallRef{CallerID: currentFunc, CalleeID: calleeID})
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())
	return out, nil
}

// ParseModules builds the file-level ModuleDef: its import paths.
func (a *GoAdapter) ParseModules(src []byte, path string) (ModuleDef, error) {
	tree, err := a.parseTree(src)
	if err != nil {
		return ModuleDef{}, err
	}
	defer tree.Close()

	var imports []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "import_declaration" {
			for i := 0; i < int(n.NamedChildCount()); i++ {
				spec := n.NamedChild(i)
				if spec.Type() != "import_spec" {
					continue
				}
				pathNode := spec.ChildByFieldName("path")
				if pathNode == nil {
					continue
				}
				imports = append(imports, strings.Trim(nodeText(pathNode, src), `"`))
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())

	return ModuleDef{
		ID:          entity.ID(fmt.Sprintf("module:%s", path)),
		Path:        path,
		ImportPaths: imports,
	}, nil
}
