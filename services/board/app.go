package board

import (
	"log/slog"
	"slices"
	"sync"

	"voiceboard-go/types"
)

// LocalApp is a minimal chat state machine for the simulator and host runs.
// It stands in for the real assistant: no audio, no server session.
type LocalApp struct {
	log *slog.Logger

	mu        sync.Mutex
	state     types.DeviceState
	wakeWords []string
	listeners []func(types.DeviceState)
}

var _ Application = (*LocalApp)(nil)

func NewLocalApp(initial types.DeviceState, log *slog.Logger) *LocalApp {
	if log == nil {
		log = slog.Default()
	}
	return &LocalApp{state: initial, log: log.With("component", "app")}
}

// OnStateChanged registers fn for every state change.
func (a *LocalApp) OnStateChanged(fn func(types.DeviceState)) {
	a.mu.Lock()
	a.listeners = append(a.listeners, fn)
	a.mu.Unlock()
}

func (a *LocalApp) DeviceState() types.DeviceState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *LocalApp) SetDeviceState(s types.DeviceState) {
	a.mu.Lock()
	if a.state == s {
		a.mu.Unlock()
		return
	}
	a.state = s
	fns := slices.Clone(a.listeners)
	a.mu.Unlock()
	a.log.Info("device state", "state", s)
	for _, fn := range fns {
		fn(s)
	}
}

// ToggleChatState opens a listening turn from idle and ends any turn in
// progress.
func (a *LocalApp) ToggleChatState() {
	switch a.DeviceState() {
	case types.DeviceStateIdle:
		a.SetDeviceState(types.DeviceStateListening)
	case types.DeviceStateListening, types.DeviceStateSpeaking:
		a.SetDeviceState(types.DeviceStateIdle)
	}
}

func (a *LocalApp) StartListening() {
	switch a.DeviceState() {
	case types.DeviceStateIdle, types.DeviceStateSpeaking:
		a.SetDeviceState(types.DeviceStateListening)
	}
}

func (a *LocalApp) StopListening() {
	if a.DeviceState() == types.DeviceStateListening {
		a.SetDeviceState(types.DeviceStateIdle)
	}
}

func (a *LocalApp) WakeWordInvoke(word string) {
	a.mu.Lock()
	a.wakeWords = append(a.wakeWords, word)
	a.mu.Unlock()
	a.log.Info("wake word", "word", word)
	if a.DeviceState() == types.DeviceStateIdle {
		a.SetDeviceState(types.DeviceStateListening)
	}
}

// WakeWords returns the wake words invoked so far.
func (a *LocalApp) WakeWords() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.wakeWords...)
}
