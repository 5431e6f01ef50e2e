// SPDX-License-Identifier: Apache-2.0

// Copyright 2025 Binaek Sarkar
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package collab

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/puddle/v2"
	"github.com/pkg/errors"

	"github.com/corint-sh/corint/value"
	"github.com/corint-sh/corint/yamlload"
)

// pooledConn is the resource puddle manages: one *sql.Conn taken from
// the *sql.DB and checked out for the duration of a single query (spec §4.9,
// ported from the teacher's puddle-pooled goja VM instances in
// runtime/modules.go, repurposed here for SQL connections instead of
// JS VMs).
type pooledConn struct {
	conn *sql.Conn
}

// SQLDataSourceClient is the default DataSourceClient: a
// database/sql-backed implementation with one puddle pool per
// configured datasource (spec §6, configs/datasources/*.yaml).
type SQLDataSourceClient struct {
	db   *sql.DB
	pool *puddle.Pool[*pooledConn]
	cfg  *yamlload.DataSourceConfig
}

// NewSQLDataSourceClient opens db (already sql.Open'd against cfg's
// driver/DSN by the caller, so this package does not import specific
// driver packages) and wraps a fixed-size connection pool around it.
func NewSQLDataSourceClient(db *sql.DB, cfg *yamlload.DataSourceConfig) (*SQLDataSourceClient, error) {
	size := cfg.PoolSize
	if size <= 0 {
		size = 10
	}
	pool, err := puddle.NewPool(&puddle.Config[*pooledConn]{
		Constructor: func(ctx context.Context) (*pooledConn, error) {
			conn, err := db.Conn(ctx)
			if err != nil {
				return nil, err
			}
			return &pooledConn{conn: conn}, nil
		},
		Destructor: func(res *pooledConn) {
			_ = res.conn.Close()
		},
		MaxSize: int32(size),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "build connection pool for datasource %q", cfg.Name)
	}
	return &SQLDataSourceClient{db: db, pool: pool, cfg: cfg}, nil
}

// GetFeature runs the single-column lookup `SELECT value FROM
// features WHERE name = $1 AND entity_key = $2` against the pooled
// connection. Feature definitions that need a richer shape use Query
// instead (spec §4.9).
func (c *SQLDataSourceClient) GetFeature(ctx context.Context, name, entityKey string) (value.Value, error) {
	res, err := c.pool.Acquire(ctx)
	if err != nil {
		return value.Null, errors.Wrapf(err, "acquire connection for datasource %q", c.cfg.Name)
	}
	defer res.Release()

	var raw any
	row := res.Value().conn.QueryRowContext(ctx,
		`SELECT value FROM features WHERE name = $1 AND entity_key = $2`, name, entityKey)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return value.Null, nil
		}
		return value.Null, errors.Wrapf(err, "query feature %q for entity %q", name, entityKey)
	}
	return value.FromGo(raw), nil
}

// Query translates a collab.Query into a parameterized SQL statement
// and runs it against the pooled connection, returning a flat row set
// (spec §4.9).
func (c *SQLDataSourceClient) Query(ctx context.Context, q Query) (QueryResult, error) {
	res, err := c.pool.Acquire(ctx)
	if err != nil {
		return QueryResult{}, errors.Wrapf(err, "acquire connection for datasource %q", c.cfg.Name)
	}
	defer res.Release()

	sqlText, args := buildSelect(q)
	rows, err := res.Value().conn.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return QueryResult{}, errors.Wrapf(err, "query entity %q", q.Entity)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return QueryResult{}, err
	}

	var out QueryResult
	for rows.Next() {
		scanDest := make([]any, len(cols))
		scanPtrs := make([]any, len(cols))
		for i := range scanDest {
			scanPtrs[i] = &scanDest[i]
		}
		if err := rows.Scan(scanPtrs...); err != nil {
			return QueryResult{}, err
		}
		row := make(map[string]value.Value, len(cols))
		for i, col := range cols {
			row[col] = value.FromGo(scanDest[i])
		}
		out.Rows = append(out.Rows, row)
	}
	return out, rows.Err()
}

// buildSelect renders a Query as a parameterized SELECT. The output
// column list follows q.Aggregations when present, otherwise `*`.
func buildSelect(q Query) (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(q.Aggregations) == 0 {
		sb.WriteString("*")
	} else {
		for i, agg := range q.Aggregations {
			if i > 0 {
				sb.WriteString(", ")
			}
			out := agg.OutputName
			if out == "" {
				out = agg.Type + "_" + agg.Field
			}
			fmt.Fprintf(&sb, "%s(%s) AS %s", sqlAggFunc(agg.Type), agg.Field, out)
		}
	}
	fmt.Fprintf(&sb, " FROM %s", q.Entity)

	var args []any
	if len(q.Filters) > 0 {
		sb.WriteString(" WHERE ")
		for i, f := range q.Filters {
			if i > 0 {
				sb.WriteString(" AND ")
			}
			args = append(args, value.ToGo(f.Value))
			fmt.Fprintf(&sb, "%s %s $%d", f.Field, sqlOp(f.Op), len(args))
		}
	}
	if len(q.GroupBy) > 0 {
		sb.WriteString(" GROUP BY " + strings.Join(q.GroupBy, ", "))
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}
	return sb.String(), args
}

func sqlAggFunc(t string) string {
	if t == "distinct_count" {
		return "COUNT"
	}
	return strings.ToUpper(t)
}

func sqlOp(op string) string {
	switch op {
	case "eq":
		return "="
	case "neq":
		return "!="
	case "gt":
		return ">"
	case "gte":
		return ">="
	case "lt":
		return "<"
	case "lte":
		return "<="
	default:
		return "="
	}
}
