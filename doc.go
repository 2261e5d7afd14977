// Obligatory // comment

/*

Package ncompose is the core of a compile-time dependency injection
generator.  Bindings are declared with a fluent API written in ordinary
Go.  ncompose reads that declaration, checks it, and resolves a
construction plan for every composition root.  Writing the code that
follows the plan is left to an emitter.

Configuration

Configuration lives in files that the regular build skips:

	//go:build ncompose

	package app

	import "github.com/muir/ncompose/di"

	func setup() {
		di.Setup("Composition").
			Bind[ISensor]().To[*TemperatureSensor]().
			Bind[ISensor]("External").To[*WindSensor]().
			Bind[ISensorService]().As(di.Singleton).To[*SensorService]().
			Root[ISensorService]("Sensor")
	}

Type arguments on methods are not valid Go but they are valid Go syntax:
the files are parsed and never compiled.  The di package never needs to
exist.

Each chain that starts with di.Setup is one Setup.  The calls that may
follow are:

	DependsOn("Base", ...)                 inherit the bindings of other setups
	Hint(key, value)                       same as a "// Key = Value" comment
	Bind[T, U...](tags...)                 start a binding with contracts
	Bind(tags...)                          contracts derived from the implementation
	As(lifetime)                           lifetime of the binding
	Tags(tags...)                          tags for every contract of the binding
	To[T]()                                construct T with its constructor or fields
	To(func(ctx di.Context) T {...})       construct with a factory
	To(func(a A, b B) T {...})             construct with a simple factory
	Singleton[T]() and friends             bind T to itself with a lifetime
	Singleton(func...) and friends         bind a factory with a lifetime
	Arg[T]("name", tags...)                composition argument
	RootArg[T]("name", tags...)            argument of root methods
	Root[T]("Name", tag, kind)             composition root
	RootBind[T]("Name", kind, tags...)     bind and expose as a root
	Builder[T]("BuildUpT")                 root that fills the fields of a T
	Builders[T]("BuildUp{type}", kind, "filter")
	                                       a builder for every subtype of T
	Roots[T]("Root{type}", kind, "filter") a root for every subtype of T
	DefaultLifetime[T](lifetime, tags...)  lifetime for bindings that have none
	Accumulate[T, TAcc](lifetimes...)      collect every T created
	GenericTypeArgument[T]()               declare T as a generic marker
	TypeAttribute(key) and friends         struct tag keys for injected fields
	SpecialType[T]()                       allow T as an implicit contract

A setup hint is written as comment lines right above the statement
holding di.Setup:

	// MaxVariants = 100
	// SeverityOfNotImplementedContract = Warning

Factories

A factory receives a di.Context.  Every ctx.Inject becomes a dependency
of the binding:

	To(func(ctx di.Context) *Service {
		var repo IRepository
		ctx.Inject(&repo)
		var log ILogger
		ctx.Inject("audit", &log)
		s := &Service{repo: repo, log: log}
		ctx.BuildUp(s)
		return s
	})

ctx.Override(value, tags...) replaces the next request and everything
it depends on.  ctx.Let(value, tags...) replaces only the factory's own
requests of that type.  A factory may not start goroutines or return a
channel.

Generics

Markers TT, TT1 ... TT9 in di stand for any type.  A binding of
IRepository[di.TT] to *Repository[di.TT] satisfies IRepository[int] and
IRepository[string] with distinct instances.

Resolution

For each requested type and tag the candidates are, in order: bindings
with exactly that contract (latest first), generic bindings that unify
with it, built in compositions ([]T, func() T, iter.Seq[T]), and types
that can be constructed without a binding.  When several candidates
exist for some requests, the combinations are tried until one produces a
complete graph without construction cycles.  Lazy compositions never
form cycles.

Diagnostics

Problems are reported through a Reporter as a Diagnostic with a stable
id.  Errors that abandon work are reported once and returned wrapping
ErrHandled.  DetailedError adds the resolver trace to an error from
Resolve.

*/
package ncompose
