package models

// MConfig Structure
type MConfig struct {
	Name     string          `yaml:"name"`
	Host     string          `yaml:"host"`
	Port     int             `yaml:"port"`
	LogLevel string          `yaml:"log_level"`
	Storage  MStorageConfig  `yaml:"storage"`
	Fetcher  MFetcherConfig  `yaml:"fetcher"`
	SignalWS MSignalWSConfig `yaml:"signal_ws"`
	UI       MUIConfig       `yaml:"ui"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	QueryTimeoutSec    int    `yaml:"query_timeout_seconds"`
}

type MFetcherConfig struct {
	FastIntervalSeconds float64 `yaml:"fast_interval_seconds"`
	SlowIntervalSeconds float64 `yaml:"slow_interval_seconds"`
	MaxEvents           int     `yaml:"max_events"`
	ErrorThreshold      int     `yaml:"error_threshold"`
}

type MSignalWSConfig struct {
	URL                      string `yaml:"url"`
	Token                    string `yaml:"token"`
	ReconnectIntervalSeconds int    `yaml:"reconnect_interval_seconds"`
	BufferSize               int    `yaml:"buffer_size"`
}

// MUIConfig carries presentation thresholds consumed by the view helpers only.
type MUIConfig struct {
	AgeWarningHours  float64 `yaml:"position_age_warning_hours"`
	AgeCriticalHours float64 `yaml:"position_age_critical_hours"`
	WinRateGood      float64 `yaml:"win_rate_good"`
	WinRateOK        float64 `yaml:"win_rate_ok"`
}
