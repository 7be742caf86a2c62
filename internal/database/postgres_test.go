package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vladimiradmaev/tacticmap/internal/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DBConfig{Host: "db", Port: "5433", User: "u", Password: "p", DBName: "tacticmap"})
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=tacticmap sslmode=disable", dsn)
}

func TestKVRecordTable(t *testing.T) {
	assert.Equal(t, "kv_records", KVRecord{}.TableName())
}
