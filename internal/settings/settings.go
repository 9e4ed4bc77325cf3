package settings

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"
)

var Settings *AppSettings

func NewSettings() *AppSettings {
	settings := AppSettings{
		SessionExpires: time.Duration(30 * 24 * time.Hour),
		Domain:         getEnvOrDefault("SIMPLECD_DOMAIN", "localhost"),
		Port:           getEnvOrDefault("SIMPLECD_PORT", ":8153"),
		DatabaseDriver: getEnvOrDefault("SIMPLECD_DB_DRIVER", "sqlite"),
		SQLiteDatabase: getEnvOrDefault("SIMPLECD_DB_PATH", "file:.///db.sqlite"),
		PostgresURL:    getEnvOrDefault("SIMPLECD_POSTGRES_URL", ""),
		ConfigFile:     getEnvOrDefault("SIMPLECD_CONFIG_FILE", "cruise-config.yaml"),
		ConfigRepoDir:  getEnvOrDefault("SIMPLECD_CONFIG_REPO_DIR", "config.git"),
		LogPath:        getEnvOrDefault("SIMPLECD_LOG_PATH", ""),
		LogLevel:       getEnvOrDefault("SIMPLECD_LOG_LEVEL", "info"),
	}
	if !strings.HasPrefix(settings.Port, ":") {
		settings.Port = ":" + settings.Port
	}
	return &settings
}

func getEnvOrDefault(key, defaultValue string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	return value
}

type AppSettings struct {
	Domain         string
	Port           string
	DatabaseDriver string
	SQLiteDatabase string
	PostgresURL    string
	ConfigFile     string
	ConfigRepoDir  string
	LogPath        string
	LogLevel       string
	SessionExpires time.Duration
}

func (as *AppSettings) BaseURL() string {
	if as.Domain == "localhost" {
		return fmt.Sprintf("http://%s%s", as.Domain, as.Port)
	} else {
		return fmt.Sprintf("https://%s", as.Domain)
	}
}

func (as *AppSettings) UsePostgres() bool {
	return as.DatabaseDriver == "pgx" && as.PostgresURL != ""
}

func (as *AppSettings) SQLiteDbString(readonly bool) string {
	params := make(url.Values)
	params.Add("_journal_mode", "WAL")
	params.Add("_busy_timeout", "5000")
	params.Add("_synchronous", "NORMAL")
	params.Add("_cache_size", "-20000")
	params.Add("_foreign_keys", "ON")
	if readonly {
		params.Add("mode", "ro")
	} else {
		params.Add("_txlock", "IMMEDIATE")
		params.Add("mode", "rwc")
	}

	return as.SQLiteDatabase + "?" + params.Encode()
}

// ReadDotenv loads KEY=value lines from path into the environment.
// A missing file is not an error.
func ReadDotenv(path string) error {
	re := regexp.MustCompile(`^[^0-9][A-Z0-9_]+=.+$`)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening dotenv: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) > 0 && line[0] != '#' && re.Match(line) {
			name, value, _ := strings.Cut(string(line), "=")
			name = strings.TrimSpace(name)
			value = strings.TrimSpace(value)
			value = strings.Trim(value, `"`)
			os.Setenv(name, value)
		}
	}
	return scanner.Err()
}
