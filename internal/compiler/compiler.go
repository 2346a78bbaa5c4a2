package compiler

import (
	"fmt"

	"github.com/limpingninja/ci2go/internal/object"
)

// Loader resolves an `inherit` path to its already-compiled Prototype,
// compiling it first if necessary. The driver supplies one backed by the
// script library's virtual filesystem; tests can supply a canned map.
type Loader func(path string) (*object.Prototype, error)

// Compiler turns source text into compiled Prototypes, resolving
// `inherit` statements through Loader and building each Prototype's
// flattened global-storage layout and merged function table.
type Compiler struct {
	Loader Loader
	Efuns  map[string]bool
	cache  map[string]*object.Prototype
}

func NewCompiler(loader Loader, efuns map[string]bool) *Compiler {
	return &Compiler{Loader: loader, Efuns: efuns, cache: make(map[string]*object.Prototype)}
}

// Compile parses and compiles one source file into a Prototype. Results
// are cached by path: recompiling the same path returns the same
// Prototype instance rather than building a second, incompatible one.
// The cache has no invalidation: once a path has compiled, later calls
// return that Prototype even if the source text has changed.
func (c *Compiler) Compile(path, src string) (*object.Prototype, error) {
	if p, ok := c.cache[path]; ok {
		return p, nil
	}

	p, err := NewParser(src)
	if err != nil {
		return nil, withFile(path, err)
	}
	file, err := p.ParseFile()
	if err != nil {
		return nil, withFile(path, err)
	}

	var inherits []*object.Prototype
	for _, id := range file.Inherits {
		if c.Loader == nil {
			return nil, &CompileError{File: path, Line: id.Line, Msg: "no loader configured to resolve inherit statements"}
		}
		anc, err := c.Loader(id.Path)
		if err != nil {
			return nil, &CompileError{File: path, Line: id.Line, Msg: fmt.Sprintf("cannot inherit %q: %v", id.Path, err)}
		}
		inherits = append(inherits, anc)
	}

	proto := object.NewPrototype(path)
	proto.Inherits = inherits
	for _, gd := range file.Globals {
		proto.Globals = append(proto.Globals, typeSpecToVarInfo(gd.Name, gd.Type))
	}

	proto.MRO = buildMRO(proto, inherits)
	gst, ancestorMap := buildGST(proto.MRO)
	proto.GST = gst
	proto.AncestorMap = ancestorMap
	proto.NumGlobals = len(gst)

	globalSlots, err := globalSlotTable(gst)
	if err != nil {
		return nil, &CompileError{File: path, Msg: err.Error()}
	}

	funcNames := map[string]bool{}
	for _, anc := range proto.MRO[1:] {
		for name := range anc.Functions {
			funcNames[name] = true
		}
	}
	for _, fd := range file.Funcs {
		funcNames[fd.Name] = true
	}

	sc := &scope{globalSlots: globalSlots, funcNames: funcNames, efunNames: c.Efuns}

	functions := map[string]*object.Function{}
	var functionList []*object.Function
	nameIndex := map[string]int{}
	addOrOverride := func(fn *object.Function) {
		if idx, exists := nameIndex[fn.Name]; exists {
			functionList[idx] = fn
			functions[fn.Name] = fn
			return
		}
		idx := len(functionList)
		functionList = append(functionList, fn)
		functions[fn.Name] = fn
		nameIndex[fn.Name] = idx
	}

	for _, anc := range reverseProtos(proto.MRO[1:]) {
		for _, fn := range anc.FunctionList {
			addOrOverride(fn)
		}
	}
	for i := range file.Funcs {
		fn, err := compileFuncBody(&file.Funcs[i], sc)
		if err != nil {
			return nil, withFile(path, err)
		}
		addOrOverride(fn)
	}
	proto.Functions = functions
	proto.FunctionList = functionList

	c.cache[path] = proto
	return proto, nil
}

// buildMRO linearizes self's ancestor order: self, then its direct
// Inherits in declaration order (deduplicated), then each direct
// inherit's own MRO tail in order (deduplicated). This is what makes
// diamond inheritance collapse a shared ancestor to one entry regardless
// of how many paths reach it (spec.md §4.1 "MRO").
func buildMRO(self *object.Prototype, directInherits []*object.Prototype) []*object.Prototype {
	seen := map[*object.Prototype]bool{self: true}
	mro := []*object.Prototype{self}
	add := func(p *object.Prototype) {
		if !seen[p] {
			seen[p] = true
			mro = append(mro, p)
		}
	}
	for _, p := range directInherits {
		add(p)
	}
	for _, p := range directInherits {
		for _, a := range p.MRO[1:] {
			add(a)
		}
	}
	return mro
}

// buildGST flattens the globals of every program in mro into one
// contiguous slot array, processing base-most ancestors first so a
// diamond-shared ancestor's storage is placed exactly once and every
// more-derived program's own globals are appended after it (spec.md §4.1
// "GST"/"ancestor_map"). mro[0] (self) must already have its own Globals
// populated.
func buildGST(mro []*object.Prototype) ([]object.GSTEntry, map[*object.Prototype]int) {
	var gst []object.GSTEntry
	ancestorMap := make(map[*object.Prototype]int)
	for i := len(mro) - 1; i >= 0; i-- {
		p := mro[i]
		ancestorMap[p] = len(gst)
		for j := range p.Globals {
			gst = append(gst, object.GSTEntry{Owner: p, OwnerLocal: j})
		}
	}
	return gst, ancestorMap
}

// globalSlotTable recovers a name->GST-index map, erroring if two
// distinct ancestor programs (or an ancestor and self) declare a global
// of the same name — the "variable conflict" spec.md §4.1 calls out as a
// compile error rather than a silent shadow.
func globalSlotTable(gst []object.GSTEntry) (map[string]int, error) {
	slots := make(map[string]int, len(gst))
	for idx, entry := range gst {
		name := entry.Owner.Globals[entry.OwnerLocal].Name
		if prev, exists := slots[name]; exists && prev != idx {
			return nil, fmt.Errorf("variable %q conflicts with an earlier inherited declaration", name)
		}
		slots[name] = idx
	}
	return slots, nil
}

func reverseProtos(ps []*object.Prototype) []*object.Prototype {
	out := make([]*object.Prototype, len(ps))
	for i, p := range ps {
		out[len(ps)-1-i] = p
	}
	return out
}
