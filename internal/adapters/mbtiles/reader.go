// Package mbtiles reads tiles from an MBTiles file (SQLite).
package mbtiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
)

var ErrTileNotFound = errors.New("tile does not exist")

// Reader implements ports.TileSource. It is safe for concurrent use.
type Reader struct {
	db       *sql.DB
	tileStmt *sql.Stmt
	meta     map[string]string
}

// Open opens path read-only.
func Open(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open mbtiles: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open mbtiles: %w", err)
	}

	r := &Reader{db: db}
	ok := false
	defer func() {
		if !ok {
			_ = r.Close()
		}
	}()

	if r.meta, err = readMetadata(db); err != nil {
		return nil, err
	}
	r.tileStmt, err = db.Prepare(`select tile_data from tiles
where zoom_level = ?1 and tile_column = ?2 and tile_row = ?3`)
	if err != nil {
		return nil, fmt.Errorf("prepare tile query: %w", err)
	}
	ok = true
	return r, nil
}

func readMetadata(db *sql.DB) (map[string]string, error) {
	rows, err := db.Query(`select name, value from metadata`)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		meta[name] = value
	}
	return meta, rows.Err()
}

// ReadTile returns the stored bytes of tile z/x/y in XYZ addressing. Vector
// tiles are usually gzip-compressed; they are returned as stored.
func (r *Reader) ReadTile(ctx context.Context, z, x, y int) ([]byte, error) {
	if z < 0 || z > 30 || x < 0 || y < 0 || x >= 1<<z || y >= 1<<z {
		return nil, fmt.Errorf("tile %d/%d/%d: %w", z, x, y, ErrTileNotFound)
	}
	// MBTiles rows use TMS order, counted from the south.
	row := (1<<z - 1) - y

	var data []byte
	err := r.tileStmt.QueryRowContext(ctx, z, x, row).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tile %d/%d/%d: %w", z, x, y, ErrTileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("tile %d/%d/%d: %w", z, x, y, err)
	}
	return data, nil
}

// Metadata returns the metadata table.
func (r *Reader) Metadata() map[string]string { return r.meta }

// Format is the tile format named in the metadata, such as pbf or png.
func (r *Reader) Format() string { return r.meta["format"] }

// ZoomRange returns the minzoom and maxzoom metadata, or 0 and 22 when they
// are missing.
func (r *Reader) ZoomRange() (minZoom, maxZoom int) {
	minZoom, maxZoom = 0, 22
	if v, err := strconv.Atoi(r.meta["minzoom"]); err == nil {
		minZoom = v
	}
	if v, err := strconv.Atoi(r.meta["maxzoom"]); err == nil {
		maxZoom = v
	}
	return minZoom, maxZoom
}

func (r *Reader) Close() error {
	if r.tileStmt != nil {
		r.tileStmt.Close()
	}
	return r.db.Close()
}
