package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the import settings. Load fills it from the environment;
// command-line flags override individual fields afterwards.
type Config struct {
	// Tvheadend
	ServerURL string // e.g. http://192.168.1.2:9981
	User      string // empty = no authentication
	Password  string
	Interface string // iptv_interface for created muxes

	// Transport
	ProxyURL  string        // http(s):// or socks5:// proxy to reach Tvheadend; "" = environment
	Timeout   time.Duration // per request
	RateLimit float64       // API requests per second; 0 = unlimited

	MetricsFile string // node_exporter textfile; "" = disabled
	DedupRemote bool   // seed the duplicate set from existing muxes
	LogLevel    string // zerolog level name
}

// Load reads config from environment. Call LoadEnvFile(".env") before Load() to use a .env file.
// If User or Password is empty, Load tries M3U2TVH_CREDENTIALS_FILE with "Username:" / "Password:" lines.
func Load() *Config {
	c := &Config{
		ServerURL:   os.Getenv("M3U2TVH_URL"),
		User:        os.Getenv("M3U2TVH_USER"),
		Password:    os.Getenv("M3U2TVH_PASS"),
		Interface:   getEnv("M3U2TVH_INTERFACE", "eth0"),
		ProxyURL:    os.Getenv("M3U2TVH_PROXY"),
		Timeout:     getEnvDuration("M3U2TVH_TIMEOUT", 30*time.Second),
		RateLimit:   getEnvFloat("M3U2TVH_RATE", 5),
		MetricsFile: os.Getenv("M3U2TVH_METRICS_FILE"),
		DedupRemote: getEnvBool("M3U2TVH_DEDUP_REMOTE", false),
		LogLevel:    getEnv("M3U2TVH_LOG_LEVEL", "info"),
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RateLimit < 0 {
		c.RateLimit = 0
	}
	if c.User == "" || c.Password == "" {
		if path := os.Getenv("M3U2TVH_CREDENTIALS_FILE"); path != "" {
			if user, pass, err := readCredentialsFile(path); err == nil {
				if c.User == "" {
					c.User = user
				}
				if c.Password == "" {
					c.Password = pass
				}
			}
		}
	}
	return c
}

// readCredentialsFile reads "Username: x" and "Password: x" from path.
func readCredentialsFile(path string) (user, pass string, err error) {
	path = filepath.Clean(path)
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "Username:") {
			user = strings.TrimSpace(strings.TrimPrefix(line, "Username:"))
		} else if strings.HasPrefix(line, "Password:") {
			pass = strings.TrimSpace(strings.TrimPrefix(line, "Password:"))
		}
	}
	if err := sc.Err(); err != nil {
		return "", "", err
	}
	if user == "" || pass == "" {
		return "", "", fmt.Errorf("credentials file: missing Username or Password")
	}
	return user, pass, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
