package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/Moddingdudes/Mirage-sub002/engine/consts"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwlog"
	"github.com/bmizerany/assert"
	"github.com/pkg/errors"
)

const sampleConfig = `
[sync]
sync_interval_ms = 50
max_packet_size = 1400
compress_threshold = 256
compress = false

[server]
transport = websocket
listen_addr = 0.0.0.0:8080
http_addr = 127.0.0.1:16000
log_level = info

[client]
server_addr = ws://127.0.0.1:8080/ws
transport = WebSocket
log_stderr = false

[kcp]
data_shards = 0
parity_shards = 0
`

func TestLoad(t *testing.T) {
	cfg, err := Load([]byte(sampleConfig))
	assert.Equal(t, nil, err)
	gwlog.Debugf("mirage config: \n%s", DumpPretty(cfg))

	assert.Equal(t, 50, cfg.Sync.SyncIntervalMS)
	assert.Equal(t, 1400, cfg.Sync.MaxPacketSize)
	assert.Equal(t, 256, cfg.Sync.CompressThreshold)
	assert.Equal(t, false, cfg.Sync.Compress)
	assert.Equal(t, "websocket", cfg.Server.Transport)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.ListenAddr)
	assert.Equal(t, "127.0.0.1:16000", cfg.Server.HTTPAddr)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "websocket", cfg.Client.Transport)
	assert.Equal(t, false, cfg.Client.LogStderr)
	assert.Equal(t, 0, cfg.KCP.DataShards)
	assert.Equal(t, 10, cfg.KCP.NoDelayIntervalMS)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 100, cfg.Sync.SyncIntervalMS)
	assert.Equal(t, consts.MAX_PACKET_SIZE, cfg.Sync.MaxPacketSize)
	assert.Equal(t, consts.PACKET_PAYLOAD_LEN_COMPRESS_THRESHOLD, cfg.Sync.CompressThreshold)
	assert.Equal(t, true, cfg.Sync.Compress)
	assert.Equal(t, "snappy", cfg.Sync.CompressFormat)
	assert.Equal(t, "kcp", cfg.Server.Transport)
	assert.Equal(t, "", cfg.Server.HTTPAddr)
	assert.Equal(t, 10, cfg.KCP.DataShards)
	assert.Equal(t, 3, cfg.KCP.ParityShards)
}

func TestLoadErrors(t *testing.T) {
	for _, data := range []string{
		"[sync]\nunknown_key = 1\n",
		"[nosuchsection]\n",
		"[sync]\nsync_interval_ms = abc\n",
		"[sync]\nsync_interval_ms = 0\n",
		"[sync]\ncompress_format = lzma\n",
		"[server]\ntransport = tcp\n",
		"[kcp]\nnodelay_interval_ms = -1\n",
	} {
		_, err := Load([]byte(data))
		assert.Equal(t, ErrInvalidConfig, errors.Cause(err))
	}
}

func TestConfigFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "mirage-config")
	assert.Equal(t, nil, err)
	defer os.RemoveAll(dir)

	f := filepath.Join(dir, "mirage.ini")
	assert.Equal(t, nil, ioutil.WriteFile(f, []byte(sampleConfig), 0644))
	SetConfigFile(f)
	defer SetConfigFile(_DEFAULT_CONFIG_FILE)

	assert.Equal(t, dir+string(filepath.Separator), GetConfigDir())
	assert.Equal(t, 50, GetSync().SyncIntervalMS)
	assert.Equal(t, "websocket", GetServer().Transport)

	assert.Equal(t, nil, ioutil.WriteFile(f, []byte("[sync]\nsync_interval_ms = 20\n"), 0644))
	assert.Equal(t, 50, Get().Sync.SyncIntervalMS)
	assert.Equal(t, 20, Reload().Sync.SyncIntervalMS)
	assert.Equal(t, "kcp", GetClient().Transport)
	assert.Equal(t, 3, GetKCP().ParityShards)
}

func TestSet(t *testing.T) {
	cfg := Default()
	cfg.Sync.MaxPacketSize = 500
	Set(cfg)
	defer Set(nil)
	assert.Equal(t, 500, GetSync().MaxPacketSize)
}
