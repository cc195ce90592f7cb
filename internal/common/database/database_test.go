package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"franchise-ledger/internal/common/config"
)

// ==========================
// Redis
// ==========================

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedis(config.RedisConfig{Address: mr.Addr(), PoolSize: 4, DialTimeout: 1000, IOTimeout: 500})
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, 4, client.Client.Options().PoolSize)

	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}

func TestNewRedis_NoAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

// ==========================
// Postgres schema
// ==========================

func newSchemaMock(t *testing.T) (*PostgresClient, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresWithDB(db), mock
}

func TestEnsureSchema(t *testing.T) {
	client, mock := newSchemaMock(t)

	mock.ExpectExec(ledgerSchema).WillReturnResult(sqlmock.NewResult(0, 0))
	for _, table := range ledgerTables {
		mock.ExpectQuery(`SELECT to_regclass($1)::text`).
			WithArgs(table).
			WillReturnRows(sqlmock.NewRows([]string{"to_regclass"}).AddRow(table))
	}

	require.NoError(t, client.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema_MissingTable(t *testing.T) {
	client, mock := newSchemaMock(t)

	mock.ExpectExec(ledgerSchema).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT to_regclass($1)::text`).
		WithArgs("franchises").
		WillReturnRows(sqlmock.NewRows([]string{"to_regclass"}).AddRow(nil))

	err := client.EnsureSchema(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "franchises")
}

func TestEnsureSchema_DDLFails(t *testing.T) {
	client, mock := newSchemaMock(t)

	mock.ExpectExec(ledgerSchema).WillReturnError(sql.ErrConnDone)

	err := client.EnsureSchema(context.Background())
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

// ==========================
// Elasticsearch revenue index
// ==========================

func newTestES(t *testing.T, handler http.HandlerFunc) *ElasticsearchClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{server.URL}, Shards: 2, Replicas: 0})
	require.NoError(t, err)
	return client
}

func TestEnsureIndex(t *testing.T) {
	tests := []struct {
		name        string
		exists      bool
		createCode  int
		createBody  string
		wantCreated bool
		wantErr     bool
	}{
		{name: "already there", exists: true},
		{name: "created", createCode: http.StatusOK, createBody: `{"acknowledged":true}`, wantCreated: true},
		{
			name: "lost the race", createCode: http.StatusBadRequest, wantCreated: true,
			createBody: `{"error":{"type":"resource_already_exists_exception"},"status":400}`,
		},
		{
			name: "bad mapping", createCode: http.StatusBadRequest, wantCreated: true, wantErr: true,
			createBody: `{"error":{"type":"mapper_parsing_exception"},"status":400}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var created map[string]interface{}
			client := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
				switch r.Method {
				case http.MethodHead:
					if tt.exists {
						w.WriteHeader(http.StatusOK)
						return
					}
					w.WriteHeader(http.StatusNotFound)
				case http.MethodPut:
					assert.Equal(t, "/franchise-revenue", r.URL.Path)
					assert.NoError(t, json.NewDecoder(r.Body).Decode(&created))
					w.WriteHeader(tt.createCode)
					_, _ = w.Write([]byte(tt.createBody))
				}
			})

			err := client.EnsureIndex(context.Background(), "franchise-revenue")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCreated, created != nil)
			if created != nil {
				settings := created["settings"].(map[string]interface{})
				assert.Equal(t, float64(2), settings["number_of_shards"])
				assert.Contains(t, created["mappings"], "properties")
			}
		})
	}
}

func TestNewElasticsearch_NoAddress(t *testing.T) {
	_, err := NewElasticsearch(config.ElasticsearchConfig{})
	assert.Error(t, err)
}
