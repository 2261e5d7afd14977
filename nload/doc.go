/*
Package nload runs ncompose over the packages of a Go module.

Configuration lives in files that only build with the ncompose tag:

	//go:build ncompose

	package app

	import "github.com/muir/ncompose/di"

	func setup() {
		di.Setup("App").
			Bind[IRepo]().To[*Repo]().
			Root[*Service]("Service")
	}

A Runner loads the packages with that tag, builds the type universe from
the other files, processes the configuration and composes the graphs.
Code generators register on GraphReady:

	r, err := nload.NewRunner(cfg)
	r.Hooks.On(nload.GraphReady, func(ctx context.Context, ev nload.Event) error {
		return emit(ev.Graph)
	})
	result, err := r.Run(ctx)

Watch keeps running the Runner as files change.
*/
package nload
