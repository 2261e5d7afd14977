package ncompose

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRoots(t *testing.T) {
	cases := []struct {
		name   string
		config string
		id     DiagnosticID
	}{
		{
			name:   "invalid name",
			config: `di.Setup("App").Root[*Service]("not valid")`,
			id:     InvalidIdentifier,
		},
		{
			name:   "same name",
			config: `di.Setup("App").Root[*Service]("S").Root[*Repo]("S")`,
			id:     DuplicateRoot,
		},
		{
			name:   "same anonymous type",
			config: `di.Setup("App").Root[*Service]().Root[*Service]()`,
			id:     DuplicateRoot,
		},
		{
			name:   "invalid argument",
			config: `di.Setup("App").Arg[string]("no-dash").Root[*Service]("S")`,
			id:     InvalidIdentifier,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			p := newTestProject(t, orderTypes)
			graphs, err := p.compose("func setup() {\n\t"+tc.config+"\n}\n", Options{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrHandled))
			assert.Contains(t, err.Error(), "setup app.App is not valid")
			assert.Empty(t, graphs)
			assert.Len(t, p.diags.ByID(tc.id), 1, p.diags.String())
		})
	}
}

func TestValidateRootsDistinct(t *testing.T) {
	p := newTestProject(t, orderTypes)
	_, err := p.compose(`
func setup() {
	di.Setup("App").
		Bind[IRepo]().To[*Repo]().
		Root[*Service]("First").
		Root[*Service]("Second").
		Root[*Service]()
}
`, Options{})
	require.NoError(t, err, p.diags.String())
	assert.Empty(t, p.diags.ByID(DuplicateRoot))
}

func TestValidateContracts(t *testing.T) {
	const config = `
func setup() {
	di.Setup("App").
		Bind[IRepo]().To[*OrderManager]().
		Root[IRepo]("Repo")
}
`
	t.Run("error by default", func(t *testing.T) {
		p := newTestProject(t, orderTypes)
		_, err := p.compose(config, Options{})
		require.Error(t, err)
		diags := p.diags.ByID(NotImplementedContract)
		require.Len(t, diags, 1)
		assert.Equal(t, Error, diags[0].Severity)
		assert.Equal(t, "*app.OrderManager does not implement app.IRepo", diags[0].Message)
	})

	t.Run("option", func(t *testing.T) {
		p := newTestProject(t, orderTypes)
		warning := Warning
		graphs, err := p.compose(config, Options{SeverityOfNotImplementedContract: &warning})
		require.NoError(t, err, p.diags.String())
		require.Len(t, graphs, 1)
		diags := p.diags.ByID(NotImplementedContract)
		require.Len(t, diags, 1)
		assert.Equal(t, Warning, diags[0].Severity)
	})
}

func TestValidateGenericMarkers(t *testing.T) {
	p := newTestProject(t, orderTypes)
	_, err := p.compose(`
func setup() {
	di.Setup("App").
		Arg[di.TT]("value").
		Root[*Service]("Service")
}
`, Options{})
	require.Error(t, err)
	assert.Len(t, p.diags.ByID(GenericMarkerMisuse), 1)
}

func TestValidateInstanceMembers(t *testing.T) {
	p := newTestProject(t, orderTypes)
	graphs, err := p.compose(`
type Module struct{ repo *Repo }

func (m *Module) base() {
	di.Setup("Base", di.Internal).
		Bind[IRepo]().To(func(ctx di.Context) *Repo { return m.repo })
}

func app() {
	di.Setup("App").
		DependsOn("Base").
		Root[IRepo]("Repo")
}
`, Options{})
	require.NoError(t, err, p.diags.String())
	require.Len(t, graphs, 1)
	leaks := p.diags.ByID(InstanceMemberLeak)
	require.Len(t, leaks, 1)
	assert.Contains(t, leaks[0].Message, "receiver m")
}

func TestValidateInstanceMembersLocal(t *testing.T) {
	p := newTestProject(t, orderTypes)
	_, err := p.compose(`
func (m *Module) base() {
	di.Setup("Base", di.Internal).
		Bind[IRepo]().To(func(ctx di.Context) *Repo {
			m := &Repo{}
			return m
		})
}

func app() {
	di.Setup("App").DependsOn("Base").Root[IRepo]("Repo")
}
`, Options{})
	require.NoError(t, err, p.diags.String())
	assert.Empty(t, p.diags.ByID(InstanceMemberLeak))
}

func TestSetupNotFound(t *testing.T) {
	p := newTestProject(t, orderTypes)
	_, err := p.compose(`
func setup() {
	di.Setup("App").DependsOn("Missing").Root[*Service]("Service")
}
`, Options{})
	require.Error(t, err)
	id, _ := DiagnosticIDOf(err)
	assert.Equal(t, SetupNotFound, id)
}

func TestGlobalSetup(t *testing.T) {
	p := newTestProject(t, orderTypes)
	graphs, err := p.compose(`
func global() {
	di.Setup("Shared", di.Global).
		Bind[IRepo]().To[*Repo]()
}

func app() {
	di.Setup("App").Root[*Service]("Service")
}
`, Options{})
	require.NoError(t, err, p.diags.String())
	assert.Empty(t, p.diags.ByID(NoRoots), "global setups need no roots")
	g := graphOf(t, graphs, "App")
	root, _ := g.Root("Service")
	require.Len(t, root.Edges, 1)
	assert.Equal(t, "Shared", root.Edges[0].To.Binding.OriginSetup)
}
