//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import "github.com/google/wire"

// InitializeApp wires the whole process from a config file.
func InitializeApp(path ConfigPath) (*App, func(), error) {
	wire.Build(ProviderSet)
	return nil, nil, nil
}
