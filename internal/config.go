package internal

import (
	"encoding/json"
	"os"
	"time"

	"github.com/haatos/simple-cd/internal/util"
)

var Config *Configuration

type HoursDuration time.Duration

func NewHoursDuration(hours int64) HoursDuration {
	return HoursDuration(time.Duration(hours) * time.Hour)
}

func (hd HoursDuration) Duration() time.Duration {
	return time.Duration(hd)
}

func (hd HoursDuration) MarshalJSON() ([]byte, error) {
	hours := float64(time.Duration(hd)) / float64(time.Hour)
	return json.Marshal(hours)
}

func (hd *HoursDuration) UnmarshalJSON(data []byte) error {
	var hours float64
	if err := json.Unmarshal(data, &hours); err != nil {
		return err
	}
	*hd = HoursDuration(hours * float64(time.Hour))
	return nil
}

type Configuration struct {
	SessionExpiresHours HoursDuration `json:"session_expires_hours"`
	CacheCapacity       uint64        `json:"cache_capacity"`
	ConfigReloadSeconds int64         `json:"config_reload_seconds"`
	HistoryPageSize     int64         `json:"history_page_size"`
	RateLimitPerSecond  float64       `json:"rate_limit_per_second"`
}

func DefaultConfiguration() *Configuration {
	return &Configuration{
		SessionExpiresHours: NewHoursDuration(30 * 24),
		CacheCapacity:       1024,
		ConfigReloadSeconds: 5,
		HistoryPageSize:     10,
		RateLimitPerSecond:  20,
	}
}

func (c *Configuration) ReloadInterval() time.Duration {
	return time.Duration(c.ConfigReloadSeconds) * time.Second
}

// InitializeConfiguration reads path into Config, writing the defaults
// to path first when it does not exist.
func InitializeConfiguration(path string) error {
	Config = DefaultConfiguration()

	configFileExists, _ := util.PathExists(path)
	if !configFileExists {
		return UpdateConfiguration(path, Config)
	}

	configBytes, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(configBytes, &Config)
}

func UpdateConfiguration(path string, config *Configuration) error {
	b, err := json.MarshalIndent(config, "", "    ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, b, 0o644); err != nil {
		return err
	}

	Config = config

	return nil
}
