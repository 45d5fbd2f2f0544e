package tele_config

type Config struct { //nolint:maligned
	Enabled      bool   `hcl:"enable"`
	LogDebug     bool   `hcl:"log_debug"`
	StationID    int    `hcl:"station_id"`
	PersistPath  string `hcl:"persist_path"`
	MqttBroker   string `hcl:"mqtt_broker"`
	MqttLogDebug bool   `hcl:"mqtt_log_debug"`
	MqttPassword string `hcl:"mqtt_password"`
	// paho file store for in-flight QoS1 messages, empty = memory
	StorePath         string `hcl:"store_path"`
	TlsCaFile         string `hcl:"tls_ca_file"`
	KeepaliveSec      int    `hcl:"keepalive_sec"`
	PingTimeoutSec    int    `hcl:"ping_timeout_sec"`
	NetworkTimeoutSec int    `hcl:"network_timeout_sec"`
	// Event kinds to export, empty = all. Names as in EventKind.String().
	Events []string `hcl:"events"`
}
