package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/exam-stats-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "stats",
		Password: "p@ss word",
		Name:     "exam_stats",
		SSLMode:  "disable",
	})

	assert.Equal(t, `host=db port=5432 user=stats password='p@ss word' dbname=exam_stats sslmode=disable application_name=exam-stats-api`, dsn)
}

func TestDSNSkipsEmptyValues(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, Name: "exam_stats"})
	assert.Equal(t, "host=db port=5432 dbname=exam_stats application_name=exam-stats-api", dsn)
}
