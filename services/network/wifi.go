package network

import (
	"context"
	"log/slog"
	"sync"

	"voiceboard-go/errcode"
	"voiceboard-go/services/settings"
	"voiceboard-go/types"
)

// Station is the Wi-Fi connection manager the transport drives.
type Station interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Connected() bool
	SSID() string
	RSSI() int
	IP() string
}

// Advertiser publishes the device on the local network once connected.
type Advertiser interface {
	Advertise(instance string, port int, txt []string) error
	Shutdown()
}

type WiFiConfig struct {
	Hostname string // mDNS instance name
	Port     int    // advertised service port; 0 disables advertising
	TXT      []string
}

type WiFi struct {
	st       Station
	cfg      WiFiConfig
	adv      Advertiser
	settings *settings.Settings // "wifi" namespace
	log      *slog.Logger

	mu         sync.Mutex
	configMode bool
}

var _ Transport = (*WiFi)(nil)

// NewWiFi builds the transport. adv and store may be nil.
func NewWiFi(st Station, cfg WiFiConfig, adv Advertiser, store *settings.Settings, log *slog.Logger) *WiFi {
	if log == nil {
		log = slog.Default()
	}
	return &WiFi{st: st, cfg: cfg, adv: adv, settings: store, log: log.With("component", "wifi")}
}

func (w *WiFi) Type() types.NetworkType { return types.NetworkWiFi }

// Start connects the station unless a configuration reset was requested, in
// which case the transport stays in configuration mode.
func (w *WiFi) Start(ctx context.Context) error {
	if w.settings != nil && w.settings.Bool("force_ap", false) {
		_ = w.settings.SetBool("force_ap", false)
		w.mu.Lock()
		w.configMode = true
		w.mu.Unlock()
		w.log.Info("entering wifi configuration mode")
		return nil
	}
	if err := w.st.Connect(ctx); err != nil {
		w.log.Warn("wifi connect failed", "err", err)
		if ctx.Err() != nil {
			return errcode.Wrap(errcode.Timeout, "wifi_start", err)
		}
		return errcode.Wrap(errcode.NotConnected, "wifi_start", err)
	}
	w.log.Info("wifi connected", "ssid", w.st.SSID(), "rssi", w.st.RSSI())
	if w.adv != nil && w.cfg.Port > 0 {
		if err := w.adv.Advertise(w.cfg.Hostname, w.cfg.Port, w.cfg.TXT); err != nil {
			w.log.Warn("mdns advertise failed", "err", err)
		}
	}
	return nil
}

func (w *WiFi) Stop() error {
	if w.adv != nil {
		w.adv.Shutdown()
	}
	w.mu.Lock()
	w.configMode = false
	w.mu.Unlock()
	return w.st.Disconnect()
}

// EnterConfigMode drops the current connection and waits for provisioning.
func (w *WiFi) EnterConfigMode() error {
	w.mu.Lock()
	if w.configMode {
		w.mu.Unlock()
		return nil
	}
	w.configMode = true
	w.mu.Unlock()
	w.log.Info("wifi configuration mode")
	if w.adv != nil {
		w.adv.Shutdown()
	}
	return w.st.Disconnect()
}

// ResetConfig makes the next Start enter configuration mode.
func (w *WiFi) ResetConfig() error {
	if w.settings != nil {
		if err := w.settings.SetBool("force_ap", true); err != nil {
			return err
		}
	}
	return w.EnterConfigMode()
}

func (w *WiFi) ConfigMode() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.configMode
}

func (w *WiFi) Connected() bool { return !w.ConfigMode() && w.st.Connected() }

func (w *WiFi) StateIcon() string {
	if w.ConfigMode() {
		return IconWiFiConfig
	}
	if !w.st.Connected() {
		return IconWiFiOff
	}
	return wifiIcon(w.st.RSSI())
}

func (w *WiFi) Status() Status {
	s := Status{Type: types.NetworkWiFi.String(), Connected: w.Connected(), Icon: w.StateIcon()}
	if s.Connected {
		s.SSID = w.st.SSID()
		s.RSSI = w.st.RSSI()
		s.IP = w.st.IP()
	}
	return s
}
