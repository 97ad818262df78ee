//go:build wireinject
// +build wireinject

package main

import (
	"moex-bonds/internal/app"
	"moex-bonds/internal/provider"

	"github.com/google/wire"
)

// App holds application dependencies built by Wire.
type App struct {
	Config *app.Config
	DP     provider.DataProvider
	Runner *app.Runner
}

// InitializeApp builds App (Config, DataProvider, Runner) via Wire.
// Caller must call a.DP.Close() when done.
func InitializeApp() (*App, error) {
	wire.Build(
		app.ProvideConfig,
		app.ProvideCriteria,
		app.ProvideReportSaver,
		app.ProvideMOEXProvider,
		app.ProvideArchiver,
		app.ProvideRecorder,
		wire.Bind(new(provider.DataProvider), new(*provider.MOEXProvider)),
		wire.Struct(new(app.Runner), "Config", "Criteria", "MOEX", "Saver", "Archiver", "Recorder"),
		wire.Struct(new(App), "Config", "DP", "Runner"),
	)
	return nil, nil
}
