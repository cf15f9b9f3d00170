/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"database/sql"
	"log"
	"sync"

	"github.com/jerry-enebeli/xbridge/config"
	"github.com/jerry-enebeli/xbridge/internal/apierror"
	_ "github.com/lib/pq"
)

// stateLockKey serialises every state-changing call on the database side.
const stateLockKey = "xbridge:state"

var instance *Datasource
var once sync.Once

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Datasource is the PostgreSQL store. Outside Atomic and View it runs every
// statement on its own; inside, all statements share the call's transaction.
type Datasource struct {
	Conn *sql.DB
	q    queryer
	inTx bool
}

// NewDataSource returns the store selected by the data_source.driver setting.
func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	if configuration.DataSource.Driver == config.DriverMemory {
		return NewMemoryDataSource(), nil
	}
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	return db, nil
}

func (d *Datasource) db() queryer {
	if d.q != nil {
		return d.q
	}
	return d.Conn
}

// Atomic runs fn inside a transaction holding the bridge-wide advisory lock,
// so calls from every replica are applied one at a time.
func (d *Datasource) Atomic(ctx context.Context, fn func(store Store) error) error {
	if d.inTx {
		return fn(d)
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, stateLockKey); err != nil {
		_ = tx.Rollback()
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to lock bridge state", err)
	}

	if err = fn(&Datasource{Conn: d.Conn, q: tx, inTx: true}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err = tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}

// View runs fn inside a read-only repeatable-read transaction.
func (d *Datasource) View(ctx context.Context, fn func(store Store) error) error {
	if d.inTx {
		return fn(d)
	}

	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(&Datasource{Conn: d.Conn, q: tx, inTx: true})
}

func (d *Datasource) Close() error {
	return d.Conn.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}
