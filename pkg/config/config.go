package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/golobby/config/v3"
	"github.com/golobby/config/v3/pkg/feeder"
	"github.com/joho/godotenv"
	"github.com/pion/webrtc/v4"
	"github.com/tphan267/huddle/pkg/utils"
	"go.yaml.in/yaml/v3"
)

const (
	DefaultPort       = "3000"
	DefaultRoom       = "main"
	DefaultSendBuffer = 256
	DefaultSTUN       = "stun:stun.l.google.com:19302"
)

// ICEServer is one STUN/TURN entry handed to clients and to pion
type ICEServer struct {
	URLs       []string `yaml:"urls" json:"urls"`
	Username   string   `yaml:"username,omitempty" json:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty" json:"credential,omitempty"`
}

// Config holds the application configuration
type Config struct {
	ServerAddr  string            `yaml:"server_addr"`
	LogLevel    string            `yaml:"log_level"`
	DBPath      string            `yaml:"db_path"`
	DefaultRoom string            `yaml:"default_room"`
	SendBuffer  int               `yaml:"send_buffer"` // per-connection outbound queue depth
	ICEServers  []ICEServer       `yaml:"ice_servers"`
	Users       map[string]string `yaml:"users"` // secret -> display name, seeded into the credential store

	Version string `yaml:"-"`

	mu   sync.Mutex `yaml:"-"`
	file string     `yaml:"-"`
}

// ToWebRTC converts ICE server entries into pion's type
func ToWebRTC(servers []ICEServer) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		srv := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			srv.Username = s.Username
			srv.Credential = s.Credential
			srv.CredentialType = webrtc.ICECredentialTypePassword
		}
		out = append(out, srv)
	}
	return out
}

// Save writes the current configuration back to the file
func (c *Config) Save() error {
	if c.file == "" {
		return fmt.Errorf("config file path is not set")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(c.file, data, 0o644)
}

// EnsureDefaultConfig applies environment overrides and fills missing fields.
// Environment overrides are never written back to the file.
func (c *Config) EnsureDefaultConfig(save bool) error {
	changed := false
	c.mu.Lock()

	if c.ServerAddr == "" {
		c.ServerAddr = ":" + DefaultPort
		changed = true
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
		changed = true
	}

	if c.DBPath == "" {
		dir := "."
		if c.file != "" {
			dir = filepath.Dir(c.file)
		}
		c.DBPath = filepath.Join(dir, "huddle.db")
		changed = true
	}

	if c.DefaultRoom == "" {
		c.DefaultRoom = DefaultRoom
		changed = true
	}

	if c.SendBuffer <= 0 {
		c.SendBuffer = DefaultSendBuffer
		changed = true
	}

	if len(c.ICEServers) == 0 {
		c.ICEServers = []ICEServer{{URLs: []string{DefaultSTUN}}}
		changed = true
	}

	c.mu.Unlock()

	if changed && save {
		if err := c.Save(); err != nil {
			return err
		}
	}

	// Demo secrets live only in memory; the credential store keeps them hashed.
	c.mu.Lock()
	if len(c.Users) == 0 {
		c.Users = map[string]string{
			"1234": "Ahmet",
			"5678": "Ayşe",
			"9999": "Mehmet",
		}
	}
	c.mu.Unlock()

	c.applyEnv()
	return nil
}

func (c *Config) applyEnv() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if port := utils.Env("PORT", ""); port != "" {
		host, _, err := net.SplitHostPort(c.ServerAddr)
		if err != nil {
			host = ""
		}
		c.ServerAddr = net.JoinHostPort(host, port)
	}

	if logLevel := utils.Env("HUDDLE_LOG_LEVEL", ""); logLevel != "" {
		c.LogLevel = logLevel
	}

	if dbPath := utils.Env("HUDDLE_DB_PATH", ""); dbPath != "" {
		c.DBPath = dbPath
	}

	if room := utils.Env("HUDDLE_DEFAULT_ROOM", ""); room != "" {
		c.DefaultRoom = room
	}

	if n := utils.EnvInt("HUDDLE_SEND_BUFFER", 0); n > 0 {
		c.SendBuffer = n
	}
}

// Load loads configuration from the specified file and environment variables
func Load(version, file, logLevel string) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Version: version,
		file:    file,
	}

	if _, err := os.Stat(file); err == nil {
		yamlFeeder := feeder.Yaml{Path: file}
		if err := config.New().AddFeeder(yamlFeeder).AddStruct(cfg).Feed(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	if err := cfg.EnsureDefaultConfig(true); err != nil {
		return nil, err
	}

	// Command-line flag wins over file and environment
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	return cfg, nil
}
