package ncompose

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sensorTypes = `
type ISensor interface{ Value() float64 }

type ISensorService interface{ Sensors() []ISensor }

type TemperatureSensor struct{}

func (*TemperatureSensor) Value() float64 { return 21 }

type WindSensor struct{}

func (*WindSensor) Value() float64 { return 3 }

type SensorService struct{ sensors []ISensor }

func NewSensorService(sensors []ISensor) *SensorService { return &SensorService{sensors: sensors} }

func (s *SensorService) Sensors() []ISensor { return s.sensors }
`

const sensorConfig = `
func setup() {
	di.Setup("Composition").
		Bind[ISensor]().To[*TemperatureSensor]().
		Bind[ISensor]("External").To[*WindSensor]().
		Bind[ISensorService]().As(di.Singleton).To[*SensorService]().
		Root[ISensorService]("Sensor")
}
`

func TestResolveSensors(t *testing.T) {
	wrapTest(t, func(t *testing.T) {
		p := newTestProject(t, sensorTypes)
		graphs, err := p.compose(sensorConfig, Options{})
		require.NoError(t, err, p.diags.String())
		assert.False(t, p.diags.HasErrors(), p.diags.String())
		assert.Empty(t, p.diags.ByID(UnusedBinding))

		g := graphOf(t, graphs, "Composition")
		assert.Equal(t, 1, g.Iterations)
		root, ok := g.Root("Sensor")
		require.True(t, ok)
		assert.Equal(t, BindingVertex, root.Kind)
		assert.Equal(t, "*app.SensorService", root.Type.String())
		assert.Equal(t, Singleton, root.Lifetime)

		require.Len(t, root.Edges, 1)
		array := root.Edges[0].To
		assert.Equal(t, ArrayVertex, array.Kind)
		assert.Equal(t, "[]app.ISensor", array.Type.String())
		assert.Equal(t, InjectParameter, root.Edges[0].Injection.Kind)
		assert.Equal(t, []string{"*app.TemperatureSensor", "*app.WindSensor"}, edgeTypes(array))
		assert.Equal(t, `"External"`, array.Edges[1].To.Tag.String())
		for _, e := range array.Edges {
			assert.Equal(t, Transient, e.To.Lifetime)
		}
	})
}

func TestTopologicalOrder(t *testing.T) {
	p := newTestProject(t, sensorTypes)
	graphs, err := p.compose(sensorConfig, Options{})
	require.NoError(t, err, p.diags.String())
	g := graphOf(t, graphs, "Composition")

	order := g.TopologicalOrder()
	require.Len(t, order, len(g.Vertices))
	at := make(map[*Vertex]int, len(order))
	for i, v := range order {
		at[v] = i
	}
	for _, e := range g.Edges {
		if e.Lazy {
			continue
		}
		assert.Less(t, at[e.To], at[e.From], "%s before %s", e.To, e.From)
	}
	root, _ := g.Root("Sensor")
	assert.Same(t, root, order[len(order)-1])
}

func TestResolveGenerics(t *testing.T) {
	wrapTest(t, func(t *testing.T) {
		p := newTestProject(t, `
type IRepository[T any] interface{ Get() T }

type Repository[T any] struct{}

func (r *Repository[T]) Get() T {
	var t T
	return t
}

var _ IRepository[int] = (*Repository[int])(nil)

type Service struct {
	Ints    IRepository[int]    `+"`di:\"\"`"+`
	Strings IRepository[string] `+"`di:\"\"`"+`
}
`)
		graphs, err := p.compose(`
func setup() {
	di.Setup("App").
		Bind[IRepository[di.TT]]().To[*Repository[di.TT]]().
		Root[*Service]("Service")
}
`, Options{})
		require.NoError(t, err, p.diags.String())
		assert.Empty(t, p.diags.ByID(UnusedBinding))
		g := graphOf(t, graphs, "App")
		root, ok := g.Root("Service")
		require.True(t, ok)
		assert.Equal(t, ImplicitVertex, root.Kind)
		assert.Equal(t, []string{"*app.Repository[int]", "*app.Repository[string]"}, edgeTypes(root))
		assert.NotSame(t, root.Edges[0].To, root.Edges[1].To)
		assert.Equal(t, root.Edges[0].To.Binding.ID, root.Edges[1].To.Binding.ID, "one generic binding")
	})
}

const variantTypes = `
type IA interface{ A() }
type IB interface{ B() }
type IC interface{ C() }

type A1 struct{}

func (*A1) A() {}

type A2 struct {
	B IB ` + "`di:\"\"`" + `
}

func (*A2) A() {}

type B1 struct{}

func (*B1) B() {}

type B2 struct {
	C IC ` + "`di:\"\"`" + `
}

func (*B2) B() {}

type C1 struct{}

func (*C1) C() {}

type C2 struct {
	A IA ` + "`di:\"\"`" + `
}

func (*C2) C() {}

type Hub struct {
	A IA ` + "`di:\"\"`" + `
	B IB ` + "`di:\"\"`" + `
	C IC ` + "`di:\"\"`" + `
}
`

const variantChain = `di.Setup("App").
		Bind[IA]().To[*A1]().
		Bind[IA]().To[*A2]().
		Bind[IB]().To[*B1]().
		Bind[IB]().To[*B2]().
		Bind[IC]().To[*C1]().
		Bind[IC]().To[*C2]().
		Root[*Hub]("Hub")`

func TestResolveVariants(t *testing.T) {
	wrapTest(t, func(t *testing.T) {
		p := newTestProject(t, variantTypes)
		graphs, err := p.compose("func setup() {\n\t"+variantChain+"\n}\n", Options{})
		require.NoError(t, err, p.diags.String())
		g := graphOf(t, graphs, "App")

		// the latest bindings come first and close a cycle, so the
		// second variant is the first that works
		assert.Equal(t, 2, g.Iterations)
		assert.LessOrEqual(t, g.Iterations, 8)
		require.Len(t, g.Variant, 3)
		assert.Equal(t, "*app.A1", g.Variant[0].Chosen.Type.String())
		assert.Equal(t, 2, g.Variant[0].Of)
		assert.Equal(t, "*app.B2", g.Variant[1].Chosen.Type.String())
		assert.Equal(t, "*app.C2", g.Variant[2].Chosen.Type.String())

		root, ok := g.Root("Hub")
		require.True(t, ok)
		assert.Equal(t, []string{"*app.A1", "*app.B2", "*app.C2"}, edgeTypes(root))
		assert.Len(t, p.diags.ByID(UnusedBinding), 3)
	})
}

func TestResolveMaxVariants(t *testing.T) {
	p := newTestProject(t, variantTypes)
	_, err := p.compose("func setup() {\n\t// MaxVariants = 1\n\t"+variantChain+"\n}\n", Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHandled))
	id, ok := DiagnosticIDOf(err)
	require.True(t, ok)
	assert.Equal(t, MaxIterationsExceeded, id)
	assert.Len(t, p.diags.ByID(MaxIterationsExceeded), 1)

	p = newTestProject(t, variantTypes)
	_, err = p.compose("func setup() {\n\t"+variantChain+"\n}\n", Options{MaxVariants: 1})
	id, _ = DiagnosticIDOf(err)
	assert.Equal(t, MaxIterationsExceeded, id)
}

const cycleTypes = `
type A struct {
	B *B ` + "`di:\"\"`" + `
}

type B struct {
	A *A ` + "`di:\"\"`" + `
}

type LazyA struct {
	B *LazyB ` + "`di:\"\"`" + `
}

type LazyB struct {
	A func() *LazyA ` + "`di:\"\"`" + `
}
`

func TestResolveCycles(t *testing.T) {
	t.Run("singleton", func(t *testing.T) {
		p := newTestProject(t, cycleTypes)
		_, err := p.compose(`
func setup() {
	di.Setup("App").
		Bind[*A]().As(di.Singleton).To[*A]().
		Root[*A]("A")
}
`, Options{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrHandled))
		id, _ := DiagnosticIDOf(err)
		assert.Equal(t, LifetimeCycle, id)
		diags := p.diags.ByID(LifetimeCycle)
		require.Len(t, diags, 1)
		assert.Contains(t, diags[0].Message, "*app.A -> *app.B -> *app.A")
		assert.NotEqual(t, err.Error(), DetailedError(err))
	})

	t.Run("transient", func(t *testing.T) {
		p := newTestProject(t, cycleTypes)
		_, err := p.compose(`
func setup() {
	di.Setup("App").Root[*A]("A")
}
`, Options{})
		id, _ := DiagnosticIDOf(err)
		assert.Equal(t, CyclicDependency, id)
	})

	t.Run("lazy", func(t *testing.T) {
		p := newTestProject(t, cycleTypes)
		graphs, err := p.compose(`
func setup() {
	di.Setup("App").
		Bind[*LazyA]().As(di.Singleton).To[*LazyA]().
		Root[*LazyA]("A")
}
`, Options{})
		require.NoError(t, err, p.diags.String())
		g := graphOf(t, graphs, "App")
		root, _ := g.Root("A")
		b := root.Edges[0].To
		require.Len(t, b.Edges, 1)
		lazy := b.Edges[0].To
		assert.Equal(t, LazyVertex, lazy.Kind)
		require.Len(t, lazy.Edges, 1)
		assert.True(t, lazy.Edges[0].Lazy)
		assert.Same(t, root, lazy.Edges[0].To)
	})
}

func TestResolveDependsOn(t *testing.T) {
	wrapTest(t, func(t *testing.T) {
		p := newTestProject(t, `
type Config struct {
	//di:bind tag=Primary
	Primary string
}

type Client struct {
	Address string `+"`di:\"tag=Primary\"`"+`
}
`)
		graphs, err := p.compose(`
func base() {
	di.Setup("Base", di.Internal).
		Bind[*Config]().As(di.Singleton).To[*Config]()
}

func app() {
	di.Setup("App").
		DependsOn("Base").
		Root[*Client]("Client")
}
`, Options{})
		require.NoError(t, err, p.diags.String())
		require.Len(t, graphs, 1)
		g := graphOf(t, graphs, "App")
		root, ok := g.Root("Client")
		require.True(t, ok)
		require.Len(t, root.Edges, 1)
		member := root.Edges[0].To
		require.NotNil(t, member.Binding)
		assert.Equal(t, "member Config.Primary", member.Binding.Synthetic)
		assert.Equal(t, "string", member.Type.String())
		require.Len(t, member.Edges, 1)
		config := member.Edges[0].To
		assert.Equal(t, "*app.Config", config.Type.String())
		assert.Equal(t, "Base", config.Binding.OriginSetup)
		assert.Equal(t, "App", config.Binding.SourceSetup)
		assert.Equal(t, Singleton, config.Lifetime)
		assert.Len(t, p.diags.ByID(NoRoots), 1, "Base has no roots")
	})
}

func TestResolveUnusedAndOverrides(t *testing.T) {
	p := newTestProject(t, `
type ILogger interface{ Log(string) }

type ConsoleLogger struct{}

func (*ConsoleLogger) Log(string) {}

type FileLogger struct{}

func (*FileLogger) Log(string) {}

type Service struct{}
`)
	graphs, err := p.compose(`
func setup() {
	di.Setup("App").
		Bind[ILogger]().To[*ConsoleLogger]().
		Bind[ILogger]("file").To[*FileLogger]().
		Bind[*Service]().To(func(ctx di.Context) *Service {
			var fallback ILogger
			ctx.Override(fallback)
			var log ILogger
			ctx.Inject(&log)
			return &Service{}
		}).
		Root[*Service]("Service")
}
`, Options{})
	require.NoError(t, err, p.diags.String())
	g := graphOf(t, graphs, "App")
	root, _ := g.Root("Service")
	require.Len(t, root.Edges, 1)
	override := root.Edges[0].To
	assert.Equal(t, OverrideVertex, override.Kind)
	require.NotNil(t, override.Override)
	assert.Equal(t, "fallback", override.Override.Value)

	unused := p.diags.ByID(UnusedBinding)
	require.Len(t, unused, 1, p.diags.String())
	assert.Contains(t, unused[0].Message, "*app.FileLogger")
	assert.Equal(t, Warning, unused[0].Severity)
}

func TestResolveUnusedHint(t *testing.T) {
	p := newTestProject(t, `
type ILogger interface{ Log(string) }

type FileLogger struct{}

func (*FileLogger) Log(string) {}

type Service struct{}

func NewService() *Service { return &Service{} }
`)
	_, err := p.compose(`
func setup() {
	// ReportUnusedBindings = false
	di.Setup("App").
		Bind[ILogger]().To[*FileLogger]().
		Root[*Service]("Service")
}
`, Options{})
	require.NoError(t, err, p.diags.String())
	assert.Empty(t, p.diags.ByID(UnusedBinding))
}

func TestResolveAccumulator(t *testing.T) {
	p := newTestProject(t, `
type IDisposable interface{ Dispose() }

type Disposables struct{}

type Conn struct{}

func NewConn() *Conn { return &Conn{} }

func (*Conn) Dispose() {}

type App struct {
	Conn        *Conn        `+"`di:\"\"`"+`
	Disposables *Disposables `+"`di:\"\"`"+`
}
`)
	graphs, err := p.compose(`
func setup() {
	di.Setup("Composition").
		Accumulate[IDisposable, *Disposables]().
		Root[*App]("App")
}
`, Options{})
	require.NoError(t, err, p.diags.String())
	g := graphOf(t, graphs, "Composition")
	root, _ := g.Root("App")
	require.Len(t, root.Edges, 2)
	acc := root.Edges[1].To
	assert.Equal(t, AccumulatorVertex, acc.Kind)
	require.Len(t, acc.Accumulated, 1)
	assert.Same(t, root.Edges[0].To, acc.Accumulated[0])
}

func TestResolveBuilder(t *testing.T) {
	p := newTestProject(t, `
type IRepo interface{ Load() }

type Repo struct{}

func (*Repo) Load() {}

type Service struct {
	Repo IRepo `+"`di:\"\"`"+`
}
`)
	graphs, err := p.compose(`
func setup() {
	di.Setup("App").
		Bind[IRepo]().To[*Repo]().
		Builder[*Service]("BuildUp{type}")
}
`, Options{})
	require.NoError(t, err, p.diags.String())
	assert.Empty(t, p.diags.ByID(UnusedBinding))
	g := graphOf(t, graphs, "App")
	root, ok := g.Root("BuildUpService")
	require.True(t, ok)
	require.Len(t, root.Edges, 2)
	assert.Equal(t, ArgVertex, root.Edges[0].To.Kind)
	assert.Equal(t, "*app.Service", root.Edges[0].To.Type.String())
	assert.Equal(t, "*app.Repo", root.Edges[1].To.Type.String())
	assert.Equal(t, InjectInitializer, root.Edges[1].Injection.Kind)
}

func TestResolveCannotResolve(t *testing.T) {
	p := newTestProject(t, `
type IMissing interface{ M() }

type Service struct {
	Missing IMissing `+"`di:\"\"`"+`
}
`)
	_, err := p.compose(`
func setup() {
	di.Setup("App").Root[*Service]("Service")
}
`, Options{})
	require.Error(t, err)
	id, _ := DiagnosticIDOf(err)
	assert.Equal(t, CannotResolve, id)
	diags := p.diags.ByID(CannotResolve)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "app.IMissing")
	assert.Equal(t, "types.go", diags[0].Location().File)
}

func TestResolveOverrideCycle(t *testing.T) {
	p := newTestProject(t, `
type A struct{}

type B struct {
	A *A `+"`di:\"\"`"+`
	N int `+"`di:\"\"`"+`
}
`)
	_, err := p.compose(`
func setup() {
	di.Setup("App").
		Bind[*A]().As(di.Singleton).To(func(ctx di.Context) *A {
			ctx.Override[int](3)
			var b *B
			ctx.Inject(&b)
			return &A{}
		}).
		Root[*A]("A")
}
`, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHandled))
	id, _ := DiagnosticIDOf(err)
	assert.Equal(t, LifetimeCycle, id)
	diags := p.diags.ByID(LifetimeCycle)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "*app.A -> *app.B -> *app.A")
}

func TestResolveSharedAcrossOverrides(t *testing.T) {
	wrapTest(t, func(t *testing.T) {
		p := newTestProject(t, `
type Logger struct{}

type Service struct{ log *Logger }

type Hub struct {
	L *Logger  `+"`di:\"\"`"+`
	S *Service `+"`di:\"\"`"+`
}
`)
		graphs, err := p.compose(`
func setup() {
	di.Setup("App").
		Bind[*Logger]().As(di.Singleton).To[*Logger]().
		Bind[*Service]().To(func(ctx di.Context) *Service {
			ctx.Override[int](1)
			var log *Logger
			ctx.Inject(&log)
			return &Service{log: log}
		}).
		Root[*Hub]("Hub")
}
`, Options{})
		require.NoError(t, err, p.diags.String())
		g := graphOf(t, graphs, "App")
		root, ok := g.Root("Hub")
		require.True(t, ok)
		require.Equal(t, []string{"*app.Logger", "*app.Service"}, edgeTypes(root))
		service := root.Edges[1].To
		require.Len(t, service.Edges, 1)
		assert.Same(t, root.Edges[0].To, service.Edges[0].To, "one singleton for both consumers")

		loggers := 0
		for _, v := range g.Vertices {
			if v.Type.String() == "*app.Logger" {
				loggers++
			}
		}
		assert.Equal(t, 1, loggers)
	})
}

func TestResolveDeterministic(t *testing.T) {
	describe := func(g *DependencyGraph) []string {
		var out []string
		for _, v := range g.Vertices {
			out = append(out, fmt.Sprintf("%d %s %s", v.ID, v.Kind, v.Type))
		}
		for _, c := range g.Variant {
			out = append(out, fmt.Sprintf("%s -> %d", c.Injection, c.Chosen.ID))
		}
		return out
	}
	var runs [][]string
	for i := 0; i < 3; i++ {
		p := newTestProject(t, variantTypes)
		graphs, err := p.compose("func setup() {\n\t"+variantChain+"\n}\n", Options{})
		require.NoError(t, err, p.diags.String())
		runs = append(runs, describe(graphOf(t, graphs, "App")))
	}
	require.NotEmpty(t, runs[0])
	assert.Equal(t, runs[0], runs[1])
	assert.Equal(t, runs[0], runs[2])
}

func TestResolveMalformedHint(t *testing.T) {
	const types = `
type Service struct{}

func NewService() *Service { return &Service{} }
`
	const config = `
func setup() {
	di.Setup("App").
		Hint("MaxVariants", "many").
		Root[*Service]("Service")
}
`
	t.Run("resolve", func(t *testing.T) {
		p := newTestProject(t, types)
		setups, err := p.setups(config)
		require.NoError(t, err, p.diags.String())
		finals, err := FinalizeAll(setups, p.u, p.diags)
		require.NoError(t, err)
		g, err := Resolve(findSetupNamed(t, finals, "App"), ResolveOptions{Types: p.u, Reporter: p.diags})
		require.NoError(t, err, p.diags.String())
		require.NotNil(t, g)
		warnings := p.diags.ByID(NotSupportedSyntax)
		require.Len(t, warnings, 1)
		assert.Equal(t, Warning, warnings[0].Severity)
		assert.Contains(t, warnings[0].Message, "MaxVariants")
	})

	t.Run("generator", func(t *testing.T) {
		p := newTestProject(t, types)
		_, err := p.compose(config, Options{})
		require.NoError(t, err, p.diags.String())
		assert.Len(t, p.diags.ByID(NotSupportedSyntax), 1, "reported once")
	})
}
