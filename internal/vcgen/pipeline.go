package vcgen

import (
	"io"

	"github.com/gridverify/gridverify/internal/ast"
	"github.com/gridverify/gridverify/internal/diagnostics"
)

// Options selects the pipeline's verification mode.
type Options struct {
	// FullAbstraction treats shared state as opaque: the barrier
	// neither havocs nor equalises it and no shared-state candidates
	// are generated.
	FullAbstraction bool

	// OnlyDivergence checks barrier divergence alone.
	OnlyDivergence bool

	// RaceChecks enables the real race instrumenter; when false the
	// null variant runs in its place.
	RaceChecks bool

	// IntraGroup restricts the two symbolic threads to one group, so
	// group ids stay uniform instead of being dualised.
	IntraGroup bool

	// Uniformity carries externally supplied uniformity facts. Nil
	// means none.
	Uniformity *UniformityInfo

	// Candidates optionally streams user candidate invariants, one
	// expression per line. Version is the tool version an optional
	// leading #requires constraint is checked against.
	Candidates io.Reader
	Version    string
}

// Pipeline runs the kernel transformation sequence over one program:
// well-formedness, normalization, entry and exit barriers, race
// instrumentation, predication, dualisation, barrier synthesis and
// candidate generation.
type Pipeline struct {
	opts Options
}

// NewPipeline creates a pipeline with the given options.
func NewPipeline(opts Options) *Pipeline {
	return &Pipeline{opts: opts}
}

// Run transforms prog in place into the two-thread product program.
// Well-formedness violations are reported through the collector; every
// other failure is returned as an error. On success the returned
// KernelInfo identifies the kernel and barrier of the transformed
// program.
func (p *Pipeline) Run(prog *ast.Program, collector *diagnostics.Collector) (*KernelInfo, error) {
	uniformity := p.opts.Uniformity
	if uniformity == nil {
		uniformity = NewUniformityInfo()
	}

	info, err := CheckWellFormedness(prog, collector)
	if err != nil {
		return nil, err
	}

	norm := NewNormalizer(prog)
	for _, impl := range prog.Implementations() {
		if err := norm.NormalizeImplementation(impl); err != nil {
			return nil, err
		}
	}

	if kernelImpl := prog.ImplementationOf(info.Kernel.Name); kernelImpl != nil {
		InsertEntryExitBarriers(kernelImpl, info.Barrier)
	}

	var race RaceInstrumenter = NullRaceInstrumenter{}
	if p.opts.RaceChecks {
		race = NewStandardRaceInstrumenter(prog, uniformity)
	}
	if err := race.AddTrackingDeclarations(info); err != nil {
		return nil, err
	}
	for _, impl := range prog.Implementations() {
		if err := race.InstrumentImplementation(impl); err != nil {
			return nil, err
		}
	}

	if err := NewPredicator(prog).PredicateProgram(); err != nil {
		return nil, err
	}

	if err := NewDualiser(prog, uniformity, p.opts.IntraGroup).DualiseProgram(); err != nil {
		return nil, err
	}

	barriers := NewBarrierGenerator(prog, info, race, p.opts.FullAbstraction, p.opts.OnlyDivergence)
	if err := barriers.Generate(); err != nil {
		return nil, err
	}

	candidates := NewCandidateGenerator(prog, info, race, collector, p.opts.FullAbstraction)
	if err := candidates.Generate(); err != nil {
		return nil, err
	}
	if p.opts.Candidates != nil {
		if err := candidates.AddUserCandidates(p.opts.Candidates, p.opts.Version); err != nil {
			return nil, err
		}
	}
	return info, nil
}
