package mirage

import (
	"github.com/Moddingdudes/Mirage-sub002/components/host"
	"github.com/Moddingdudes/Mirage-sub002/engine/config"
	"github.com/Moddingdudes/Mirage-sub002/engine/entity"
	"github.com/Moddingdudes/Mirage-sub002/engine/syncvar"
)

// NewSchema starts building a field group
func NewSchema(name string) *syncvar.SchemaBuilder {
	return syncvar.NewSchema(name)
}

// RegisterEntity registers an entity type made of field groups
func RegisterEntity(typeName string, groups ...*syncvar.Schema) *entity.EntityTypeDesc {
	return entity.RegisterEntity(typeName, groups...)
}

// SetConfigFile sets the config file path
func SetConfigFile(f string) {
	config.SetConfigFile(f)
}

// GetConfig returns the config read from the config file
func GetConfig() *config.MirageConfig {
	return config.Get()
}

// NewServer creates a server host listening as configured
func NewServer(cfg *config.MirageConfig) (*host.Host, error) {
	return host.NewServer(cfg)
}

// NewClient creates a client host connected as configured
func NewClient(cfg *config.MirageConfig) (*host.Host, error) {
	return host.NewClient(cfg)
}
