package vcgen

import (
	"github.com/gridverify/gridverify/internal/ast"
	"github.com/gridverify/gridverify/internal/diagnostics"
	verr "github.com/gridverify/gridverify/internal/errors"
	"github.com/gridverify/gridverify/internal/position"
)

// KernelInfo is the result of a successful well-formedness check: the
// unique kernel and barrier procedures plus the recognised grid
// constants.
type KernelInfo struct {
	Kernel  *ast.Procedure
	Barrier *ast.Procedure

	// Special grid constants present in the program, keyed by name.
	Constants map[string]*ast.Variable
}

// HasConstant reports whether the named grid constant was declared.
func (ki *KernelInfo) HasConstant(name string) bool {
	_, ok := ki.Constants[name]
	return ok
}

// AxisPresent reports whether any constant of the axis was declared.
func (ki *KernelInfo) AxisPresent(a Axis) bool {
	for _, name := range AxisConstantNames(a) {
		if ki.HasConstant(name) {
			return true
		}
	}
	return false
}

// CheckWellFormedness scans all declarations once and validates the
// kernel/barrier convention. Violations accumulate in the collector
// rather than short-circuiting; the returned KernelInfo is only
// meaningful when the error count stayed at zero. The second return
// value is the terminal error when any violation was found.
func CheckWellFormedness(prog *ast.Program, collector *diagnostics.Collector) (*KernelInfo, error) {
	before := collector.ErrorCount()
	info := &KernelInfo{Constants: map[string]*ast.Variable{}}

	var kernels, barriers []*ast.Procedure
	for _, d := range prog.Decls {
		switch decl := d.(type) {
		case *ast.Procedure:
			if decl.Attrs.Has(ast.AttrKernel) {
				kernels = append(kernels, decl)
			}
			if decl.Attrs.Has(ast.AttrBarrier) {
				barriers = append(barriers, decl)
			}
		case *ast.Variable:
			if decl.Kind == ast.KindConst && IsSpecialConstantName(decl.Name) {
				info.Constants[decl.Name] = decl
			}
		case *ast.Implementation:
			for _, v := range decl.Locals {
				if v.Attrs.Has(ast.AttrTileStatic) {
					collector.Errorf(diagnostics.CategoryTileStatic, v.GetSpan(),
						"local variable %s in %s must not be marked tile_static; promote it to a group-shared global",
						v.Name, decl.Name)
				}
			}
		}
	}

	checkUnique(collector, kernels, ast.AttrKernel, diagnostics.CategoryKernelShape)
	checkUnique(collector, barriers, ast.AttrBarrier, diagnostics.CategoryBarrierShape)
	if len(kernels) == 1 {
		info.Kernel = kernels[0]
		checkNoSignature(collector, info.Kernel, ast.AttrKernel, diagnostics.CategoryKernelShape)
		checkAxisConstants(collector, info)
	}
	if len(barriers) == 1 {
		info.Barrier = barriers[0]
		checkNoSignature(collector, info.Barrier, ast.AttrBarrier, diagnostics.CategoryBarrierShape)
	}

	if collector.ErrorCount() > before {
		return nil, verr.WellFormedness(collector.ErrorCount() - before)
	}
	return info, nil
}

func checkUnique(collector *diagnostics.Collector, procs []*ast.Procedure, attr string, cat diagnostics.Category) {
	switch len(procs) {
	case 1:
	case 0:
		collector.Errorf(cat, position.NoSpan,
			"no procedure is marked %s; exactly one is required", attr)
	default:
		names := procs[0].Name
		for _, p := range procs[1:] {
			names += ", " + p.Name
		}
		collector.Errorf(cat, procs[1].GetSpan(),
			"multiple procedures are marked %s (%s); exactly one is allowed", attr, names)
	}
}

func checkNoSignature(collector *diagnostics.Collector, proc *ast.Procedure, attr string, cat diagnostics.Category) {
	if len(proc.Params) > 0 {
		collector.Errorf(cat, proc.GetSpan(),
			"%s procedure %s must not declare parameters", attr, proc.Name)
	}
	if len(proc.Returns) > 0 {
		collector.Errorf(cat, proc.GetSpan(),
			"%s procedure %s must not declare return values", attr, proc.Name)
	}
}

// checkAxisConstants enforces axis completeness: the X quadruple is
// mandatory; any Y constant requires all of Y; any Z constant requires
// all of Z and all of Y.
func checkAxisConstants(collector *diagnostics.Collector, info *KernelInfo) {
	requireAxis := func(a Axis) {
		for _, name := range AxisConstantNames(a) {
			if !info.HasConstant(name) {
				collector.Errorf(diagnostics.CategoryAxisConstants, info.Kernel.GetSpan(),
					"kernel %s requires constant %s to be declared", info.Kernel.Name, name)
			}
		}
	}

	requireAxis(AxisX)
	if info.AxisPresent(AxisZ) {
		requireAxis(AxisY)
		requireAxis(AxisZ)
	} else if info.AxisPresent(AxisY) {
		requireAxis(AxisY)
	}
}
