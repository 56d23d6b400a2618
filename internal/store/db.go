// Package store persists the relay's users, devices, stolen-device pings and
// emergencies in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps the relay database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection serializes writers and keeps an in-memory
	// database alive across queries.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	fail := func(err error) (*Store, error) {
		return nil, errors.Join(err, db.Close())
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fail(fmt.Errorf("%s: %w", pragma, err))
		}
	}

	if err := db.PingContext(ctx); err != nil {
		return fail(fmt.Errorf("database ping failed: %w", err))
	}

	if err := migrate(ctx, db); err != nil {
		return fail(fmt.Errorf("failed to run migrations: %w", err))
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS usuarios (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		nome_completo TEXT NOT NULL,
		numero_identidade TEXT NOT NULL UNIQUE,
		telefone_principal TEXT NOT NULL,
		telefone_emergencia TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		provincia TEXT NOT NULL DEFAULT '',
		cidade TEXT NOT NULL DEFAULT '',
		bairro TEXT NOT NULL DEFAULT '',
		rua TEXT NOT NULL DEFAULT '',
		numero_casa TEXT NOT NULL DEFAULT '',
		latitude_residencia REAL NOT NULL DEFAULT 0,
		longitude_residencia REAL NOT NULL DEFAULT 0,
		ativo INTEGER NOT NULL DEFAULT 1,
		data_cadastro TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS dispositivos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		imei TEXT NOT NULL UNIQUE,
		modelo TEXT NOT NULL DEFAULT '',
		marca TEXT NOT NULL DEFAULT '',
		sistema_operacional TEXT NOT NULL DEFAULT '',
		versao_app TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'ativo',
		ultima_localizacao_lat REAL,
		ultima_localizacao_lng REAL,
		ultimo_ping TEXT NOT NULL DEFAULT '',
		usuario_id INTEGER NOT NULL REFERENCES usuarios(id) ON DELETE CASCADE,
		data_cadastro TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pings_roubados (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dispositivo_id INTEGER NOT NULL REFERENCES dispositivos(id) ON DELETE CASCADE,
		timestamp TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		precisao_gps INTEGER,
		nivel_bateria INTEGER,
		status_dispositivo TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pings_dispositivo
		ON pings_roubados(dispositivo_id, timestamp)`,
	`CREATE TABLE IF NOT EXISTS emergencias (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		timestamp_acionamento TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'ativa',
		usuario_id INTEGER NOT NULL REFERENCES usuarios(id) ON DELETE CASCADE,
		dispositivo_id INTEGER NOT NULL REFERENCES dispositivos(id) ON DELETE CASCADE,
		timestamp_resposta TEXT NOT NULL DEFAULT '',
		observacoes_admin TEXT NOT NULL DEFAULT '',
		nivel_bateria INTEGER,
		precisao_gps INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_emergencias_status ON emergencias(status)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
