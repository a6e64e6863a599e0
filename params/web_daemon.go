package params

import "path/filepath"

type ListenerConfig struct {
	// Network is "tcp", "tcp4", "tcp6" or "unix".
	Network string
	Address string
}

type WebDaemonConfig struct {
	ListenerConfig
	DataDir string

	// ShowMeasured and ShowEstimated toggle which positions are pushed to
	// websocket clients.
	ShowMeasured  bool
	ShowEstimated bool

	// ReplaySize is how many recent outputs are sent to a newly connected client.
	ReplaySize int
}

func DefaultWebListenerConfig() ListenerConfig {
	return ListenerConfig{
		Network: "tcp",
		Address: "localhost:3000",
	}
}

func DefaultWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		DataDir:        DatadirRoot,
		ListenerConfig: DefaultWebListenerConfig(),
		ShowMeasured:   true,
		ShowEstimated:  true,
		ReplaySize:     100,
	}
}

func DefaultTestWebDaemonConfig() *WebDaemonConfig {
	d := &WebDaemonConfig{
		DataDir: "",
		ListenerConfig: ListenerConfig{
			Network: "tcp",
			Address: "localhost:3333",
		},
		ShowMeasured:  true,
		ShowEstimated: true,
		ReplaySize:    10,
	}
	return d
}

type StateConfig struct {
	DataDir string
}

func DefaultStateConfig() *StateConfig {
	return &StateConfig{DataDir: DatadirRoot}
}

func (c *StateConfig) DBPath() string {
	return filepath.Join(c.DataDir, StateDBName)
}

type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string

	// Measurement is the InfluxDB measurement name for estimates.
	Measurement string
}

func DefaultInfluxConfig() *InfluxConfig {
	return &InfluxConfig{
		Org:         "catfuse",
		Bucket:      "catfuse",
		Measurement: "estimate",
	}
}

func (c *InfluxConfig) Enabled() bool {
	return c != nil && c.URL != ""
}
