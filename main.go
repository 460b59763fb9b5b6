// Command voiceboard brings up the board named by $BOARD and runs it until
// interrupted. On the host every peripheral is emulated.
package main

import (
	"os"

	"voiceboard-go/bus"
	"voiceboard-go/internal/log"
	"voiceboard-go/services/board"
	"voiceboard-go/services/config"
	"voiceboard-go/services/heartbeat"
	"voiceboard-go/types"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func loadProfile() (*config.Profile, error) {
	if path := os.Getenv("BOARD_PROFILE"); path != "" {
		return config.LoadFile(path)
	}
	return config.Load(envOr("BOARD", board.VariantC3))
}

func main() {
	log.Init(envOr("LOG_LEVEL", "info"))
	l := log.Component("main")

	p, err := loadProfile()
	if err != nil {
		l.Error("profile", "err", err)
		os.Exit(1)
	}

	ctx, cancel := appContext()
	defer cancel()

	hw, store, err := hardware(p)
	if err != nil {
		l.Error("hardware", "err", err)
		os.Exit(1)
	}

	b := bus.NewBus(32)
	config.NewConfigService(p, log.L()).Start(ctx, b.NewConnection("config"))

	app := board.NewLocalApp(types.DeviceStateStarting, log.L())
	brd, err := board.New(ctx, p, hw, board.Deps{
		Bus:      b,
		Settings: store,
		App:      app,
		Log:      log.L(),
	})
	if err != nil {
		l.Error("board", "err", err)
		os.Exit(1)
	}
	defer brd.Close()
	app.OnStateChanged(brd.NotifyDeviceState)

	if err := brd.StartNetwork(ctx); err != nil {
		l.Warn("network", "err", err)
	}
	app.SetDeviceState(types.DeviceStateIdle)
	l.Info("board up", "board", brd.BoardJSON())

	_ = heartbeat.New(brd, 0, log.L()).Start(ctx, b.NewConnection("heartbeat"))
	if err := brd.Run(ctx); err != nil {
		l.Error("run", "err", err)
	}
	l.Info("shutting down")
}
