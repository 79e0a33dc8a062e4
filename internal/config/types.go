// Package config provides the configuration types and defaults shared by
// the CLI and the server, decoupled from flag handling.
package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leaplineage/internal/batch"
	"github.com/leapstack-labs/leaplineage/pkg/adapter"
)

// WarehouseConfig selects the warehouse used by warehouse: sources and the
// import command.
type WarehouseConfig struct {
	Type           string         `koanf:"type"` // duckdb, postgres, sqlite
	DSN            string         `koanf:"dsn"`
	Table          string         `koanf:"table"`
	BatchColumn    string         `koanf:"batch_column"`
	SequenceColumn string         `koanf:"sequence_column"`
	Schema         string         `koanf:"schema"`
	Params         map[string]any `koanf:"params"`
}

// ApplyDefaults fills unset fields.
func (w *WarehouseConfig) ApplyDefaults() {
	if w.Type == "" {
		w.Type = DefaultWarehouse
	}
	w.Type = strings.ToLower(w.Type)
	if w.Table == "" {
		w.Table = batch.DefaultTable
	}
	if w.BatchColumn == "" {
		w.BatchColumn = batch.DefaultBatchColumn
	}
	if w.SequenceColumn == "" {
		w.SequenceColumn = batch.DefaultSequenceColumn
	}
	if w.Schema == "" {
		w.Schema = DefaultSchemaForType(w.Type)
	}
}

// Validate checks the warehouse type against the adapter registry and the
// table name against the identifier rules.
func (w *WarehouseConfig) Validate() error {
	if w.Type == "" {
		return fmt.Errorf("warehouse type is required")
	}
	if !adapter.IsRegistered(strings.ToLower(w.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      w.Type,
			Available: adapter.ListAdapters(),
		}
	}
	if w.Table != "" {
		if err := adapter.ValidateTableName(w.Table); err != nil {
			return err
		}
	}
	return nil
}

// ToBatch converts to the batch package's warehouse settings.
func (w WarehouseConfig) ToBatch() batch.WarehouseConfig {
	return batch.WarehouseConfig{
		Type:           w.Type,
		DSN:            w.DSN,
		Table:          w.Table,
		BatchColumn:    w.BatchColumn,
		SequenceColumn: w.SequenceColumn,
		Params:         w.Params,
	}
}

// ToAdapter converts to an adapter connection config.
func (w WarehouseConfig) ToAdapter() adapter.Config {
	return adapter.Config{
		Type:   w.Type,
		DSN:    w.DSN,
		Schema: w.Schema,
		Params: w.Params,
	}
}

// ObjectStoreConfig holds bucket credentials for s3://, gs:// and azblob:// sources.
type ObjectStoreConfig struct {
	Endpoint        string `koanf:"endpoint"`
	Region          string `koanf:"region"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
	CredentialsFile string `koanf:"credentials_file"`
	AccountName     string `koanf:"account_name"`
	AccountKey      string `koanf:"account_key"`
}

// ToBatch converts to the batch package's store settings.
func (o ObjectStoreConfig) ToBatch() batch.ObjectStoreConfig {
	return batch.ObjectStoreConfig(o)
}
