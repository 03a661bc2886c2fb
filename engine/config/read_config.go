package config

import (
	"encoding/json"
	"path"
	"strings"
	"sync"

	"github.com/Moddingdudes/Mirage-sub002/engine/consts"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwlog"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwutils"
	"github.com/go-ini/ini"
	"github.com/pkg/errors"
)

const (
	_DEFAULT_CONFIG_FILE      = "mirage.ini"
	_DEFAULT_LOG_LEVEL        = "debug"
	_DEFAULT_TRANSPORT        = "kcp"
	_DEFAULT_ADDR             = "127.0.0.1:14000"
	_DEFAULT_SYNC_INTERVAL_MS = 100
	_DEFAULT_COMPRESS_FORMAT  = "snappy"
)

var (
	configFilePath = _DEFAULT_CONFIG_FILE
	mirageConfig   *MirageConfig
	configLock     sync.Mutex

	// ErrInvalidConfig is the cause of every config error
	ErrInvalidConfig = errors.New("invalid config")
)

// SyncConfig defines fields of the [sync] section
type SyncConfig struct {
	SyncIntervalMS    int
	MaxPacketSize     int
	CompressThreshold int
	Compress          bool
	CompressFormat    string
}

// ServerConfig defines fields of the [server] section
type ServerConfig struct {
	Transport  string
	ListenAddr string
	HTTPAddr   string
	LogFile    string
	LogLevel   string
	LogStderr  bool
}

// ClientConfig defines fields of the [client] section
type ClientConfig struct {
	Transport  string
	ServerAddr string
	LogFile    string
	LogLevel   string
	LogStderr  bool
}

// KCPConfig defines fields of the [kcp] section
type KCPConfig struct {
	DataShards        int
	ParityShards      int
	NoDelayIntervalMS int
}

// MirageConfig defines the total config file structure
type MirageConfig struct {
	Sync   SyncConfig
	Server ServerConfig
	Client ClientConfig
	KCP    KCPConfig
}

// SetConfigFile sets the config file path (mirage.ini by default)
func SetConfigFile(f string) {
	configLock.Lock()
	configFilePath = f
	mirageConfig = nil
	configLock.Unlock()
}

// GetConfigDir returns the directory of the config file
func GetConfigDir() string {
	dir, _ := path.Split(configFilePath)
	return dir
}

// GetConfigFilePath returns the config file path
func GetConfigFilePath() string {
	return configFilePath
}

// Get returns the total config, read from the config file on first use
func Get() *MirageConfig {
	configLock.Lock()
	defer configLock.Unlock() // protect concurrent access from transports
	if mirageConfig == nil {
		gwlog.Infof("Using config file: %s", configFilePath)
		iniFile, err := ini.Load(configFilePath)
		checkConfigError(err, "")
		mirageConfig = readMirageConfig(iniFile)
	}
	return mirageConfig
}

// Reload forces to reload the whole config
func Reload() *MirageConfig {
	configLock.Lock()
	mirageConfig = nil
	configLock.Unlock()

	return Get()
}

// Set replaces the current config, for tests and embedding hosts
func Set(cfg *MirageConfig) {
	configLock.Lock()
	mirageConfig = cfg
	configLock.Unlock()
}

// GetSync returns the [sync] config
func GetSync() *SyncConfig {
	return &Get().Sync
}

// GetServer returns the [server] config
func GetServer() *ServerConfig {
	return &Get().Server
}

// GetClient returns the [client] config
func GetClient() *ClientConfig {
	return &Get().Client
}

// GetKCP returns the [kcp] config
func GetKCP() *KCPConfig {
	return &Get().KCP
}

// Load parses config data without touching the current config
func Load(data []byte) (cfg *MirageConfig, err error) {
	err = gwutils.CatchPanic(func() {
		iniFile, err := ini.Load(data)
		checkConfigError(err, "")
		cfg = readMirageConfig(iniFile)
	})
	if err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	return cfg, nil
}

// Default returns the config used when no file sets anything
func Default() *MirageConfig {
	return readMirageConfig(ini.Empty())
}

// DumpPretty format config to string in pretty format
func DumpPretty(cfg interface{}) string {
	s, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return err.Error()
	}
	return string(s)
}

func readMirageConfig(iniFile *ini.File) *MirageConfig {
	config := MirageConfig{}
	readSyncConfig(iniFile.Section("sync"), &config.Sync)
	readServerConfig(iniFile.Section("server"), &config.Server)
	readClientConfig(iniFile.Section("client"), &config.Client)
	readKCPConfig(iniFile.Section("kcp"), &config.KCP)

	for _, sec := range iniFile.Sections() {
		secName := strings.ToLower(sec.Name())
		if secName == strings.ToLower(ini.DefaultSection) {
			continue
		}
		if secName != "sync" && secName != "server" && secName != "client" && secName != "kcp" {
			gwlog.Panicf("unknown section: %s", sec.Name())
		}
	}

	validateConfig(&config)
	return &config
}

func readSyncConfig(sec *ini.Section, sc *SyncConfig) {
	sc.SyncIntervalMS = _DEFAULT_SYNC_INTERVAL_MS
	sc.MaxPacketSize = consts.MAX_PACKET_SIZE
	sc.CompressThreshold = consts.PACKET_PAYLOAD_LEN_COMPRESS_THRESHOLD
	sc.Compress = true
	sc.CompressFormat = _DEFAULT_COMPRESS_FORMAT

	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "sync_interval_ms" {
			sc.SyncIntervalMS = mustInt(key)
		} else if name == "max_packet_size" {
			sc.MaxPacketSize = mustInt(key)
		} else if name == "compress_threshold" {
			sc.CompressThreshold = mustInt(key)
		} else if name == "compress" {
			sc.Compress = mustBool(key)
		} else if name == "compress_format" {
			sc.CompressFormat = strings.ToLower(key.String())
		} else {
			gwlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}
}

func readServerConfig(sec *ini.Section, sc *ServerConfig) {
	sc.Transport = _DEFAULT_TRANSPORT
	sc.ListenAddr = _DEFAULT_ADDR
	sc.HTTPAddr = ""
	sc.LogFile = ""
	sc.LogLevel = _DEFAULT_LOG_LEVEL
	sc.LogStderr = true

	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "transport" {
			sc.Transport = strings.ToLower(key.String())
		} else if name == "listen_addr" {
			sc.ListenAddr = key.String()
		} else if name == "http_addr" {
			sc.HTTPAddr = key.String()
		} else if name == "log_file" {
			sc.LogFile = key.String()
		} else if name == "log_level" {
			sc.LogLevel = key.String()
		} else if name == "log_stderr" {
			sc.LogStderr = mustBool(key)
		} else {
			gwlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}
}

func readClientConfig(sec *ini.Section, cc *ClientConfig) {
	cc.Transport = _DEFAULT_TRANSPORT
	cc.ServerAddr = _DEFAULT_ADDR
	cc.LogFile = ""
	cc.LogLevel = _DEFAULT_LOG_LEVEL
	cc.LogStderr = true

	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "transport" {
			cc.Transport = strings.ToLower(key.String())
		} else if name == "server_addr" {
			cc.ServerAddr = key.String()
		} else if name == "log_file" {
			cc.LogFile = key.String()
		} else if name == "log_level" {
			cc.LogLevel = key.String()
		} else if name == "log_stderr" {
			cc.LogStderr = mustBool(key)
		} else {
			gwlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}
}

func readKCPConfig(sec *ini.Section, kc *KCPConfig) {
	kc.DataShards = 10
	kc.ParityShards = 3
	kc.NoDelayIntervalMS = 10

	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "data_shards" {
			kc.DataShards = mustInt(key)
		} else if name == "parity_shards" {
			kc.ParityShards = mustInt(key)
		} else if name == "nodelay_interval_ms" {
			kc.NoDelayIntervalMS = mustInt(key)
		} else {
			gwlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}
}

func mustInt(key *ini.Key) int {
	v, err := key.Int()
	checkConfigError(err, "key "+key.Name()+" must be an integer")
	return v
}

func mustBool(key *ini.Key) bool {
	v, err := key.Bool()
	checkConfigError(err, "key "+key.Name()+" must be a boolean")
	return v
}

func checkConfigError(err error, msg string) {
	if err != nil {
		if msg == "" {
			msg = err.Error()
		}
		gwlog.Panicf("read config error: %s", msg)
	}
}

func validateTransport(section string, transport string) {
	if transport != "kcp" && transport != "websocket" {
		gwlog.Panicf("[%s] unknown transport: %s", section, transport)
	}
}

func validateConfig(config *MirageConfig) {
	sc := &config.Sync
	if sc.SyncIntervalMS <= 0 {
		gwlog.Panicf("[sync] sync_interval_ms must be positive")
	}
	if sc.MaxPacketSize < 64 {
		gwlog.Panicf("[sync] max_packet_size %d is too small", sc.MaxPacketSize)
	}
	if sc.CompressThreshold < 0 {
		gwlog.Panicf("[sync] compress_threshold must not be negative")
	}
	if sc.Compress && sc.CompressFormat != "snappy" && sc.CompressFormat != "flate" {
		gwlog.Panicf("[sync] unknown compress_format: %s", sc.CompressFormat)
	}

	validateTransport("server", config.Server.Transport)
	validateTransport("client", config.Client.Transport)

	kc := &config.KCP
	if kc.DataShards < 0 || kc.ParityShards < 0 {
		gwlog.Panicf("[kcp] shards must not be negative")
	}
	if kc.NoDelayIntervalMS <= 0 {
		gwlog.Panicf("[kcp] nodelay_interval_ms must be positive")
	}
}
