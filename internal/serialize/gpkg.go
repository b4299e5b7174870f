package serialize

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"

	"github.com/geoglim/clipserver/internal/crs"
)

// GeoPackage 1.2+ application id, "GPKG".
const gpkgApplicationID = 0x47504B47

// writeGeoPackage creates a single-layer GeoPackage at path with the feature
// table named after the dataset.
func writeGeoPackage(path, table string, fc *geojson.FeatureCollection, c crs.CRS) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("open geopackage: %w", err)
	}
	defer db.Close()

	srsID := srsCode(c)
	if err := gpkgInitSchema(db, c, srsID); err != nil {
		return err
	}

	props := make([]featureProps, 0, len(fc.Features))
	for _, f := range fc.Features {
		props = append(props, f.Properties)
	}
	cols := inferColumns(props)

	ddl := make([]string, 0, len(cols)+2)
	ddl = append(ddl, `"fid" INTEGER PRIMARY KEY AUTOINCREMENT`, `"geom" BLOB`)
	for _, col := range cols {
		ddl = append(ddl, fmt.Sprintf("%s %s", quoteIdent(col.name), sqliteType(col.kind)))
	}
	if _, err := db.Exec(fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(ddl, ", "))); err != nil {
		return fmt.Errorf("create feature table: %w", err)
	}

	bound := collectionBound(fc)
	if _, err := db.Exec(
		`INSERT INTO gpkg_contents (table_name, data_type, identifier, min_x, min_y, max_x, max_y, srs_id)
		 VALUES (?, 'features', ?, ?, ?, ?, ?, ?)`,
		table, table, bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1], srsID,
	); err != nil {
		return fmt.Errorf("register contents: %w", err)
	}
	if _, err := db.Exec(
		`INSERT INTO gpkg_geometry_columns (table_name, column_name, geometry_type_name, srs_id, z, m)
		 VALUES (?, 'geom', 'GEOMETRY', ?, 0, 0)`,
		table, srsID,
	); err != nil {
		return fmt.Errorf("register geometry column: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	placeholders := make([]string, 0, len(cols)+1)
	names := make([]string, 0, len(cols)+1)
	names = append(names, `"geom"`)
	placeholders = append(placeholders, "?")
	for _, col := range cols {
		names = append(names, quoteIdent(col.name))
		placeholders = append(placeholders, "?")
	}
	stmt, err := tx.Prepare(fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(names, ", "), strings.Join(placeholders, ", "),
	))
	if err != nil {
		tx.Rollback()
		return err
	}

	for _, f := range fc.Features {
		blob, err := gpkgGeometryBlob(f.Geometry, srsID)
		if err != nil {
			stmt.Close()
			tx.Rollback()
			return err
		}
		args := make([]interface{}, 0, len(cols)+1)
		args = append(args, blob)
		for _, col := range cols {
			args = append(args, sqliteValue(col.kind, f.Properties[col.name]))
		}
		if _, err := stmt.Exec(args...); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("insert feature: %w", err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return err
	}

	_, err = db.Exec(fmt.Sprintf("PRAGMA application_id = %d", gpkgApplicationID))
	return err
}

func gpkgInitSchema(db *sql.DB, c crs.CRS, srsID int) error {
	stmts := []string{
		`CREATE TABLE gpkg_spatial_ref_sys (
			srs_name TEXT NOT NULL,
			srs_id INTEGER NOT NULL PRIMARY KEY,
			organization TEXT NOT NULL,
			organization_coordsys_id INTEGER NOT NULL,
			definition TEXT NOT NULL,
			description TEXT
		)`,
		`CREATE TABLE gpkg_contents (
			table_name TEXT NOT NULL PRIMARY KEY,
			data_type TEXT NOT NULL,
			identifier TEXT UNIQUE,
			description TEXT DEFAULT '',
			last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE,
			srs_id INTEGER,
			CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
		)`,
		`CREATE TABLE gpkg_geometry_columns (
			table_name TEXT NOT NULL,
			column_name TEXT NOT NULL,
			geometry_type_name TEXT NOT NULL,
			srs_id INTEGER NOT NULL,
			z TINYINT NOT NULL,
			m TINYINT NOT NULL,
			CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name),
			CONSTRAINT fk_gc_tn FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name),
			CONSTRAINT fk_gc_srs FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
		)`,
		`INSERT INTO gpkg_spatial_ref_sys VALUES
			('Undefined Cartesian', -1, 'NONE', -1, 'undefined', NULL),
			('Undefined Geographic', 0, 'NONE', 0, 'undefined', NULL)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("init geopackage schema: %w", err)
		}
	}

	org := "EPSG"
	if strings.HasPrefix(c.String(), "ESRI") {
		org = "ESRI"
	}
	_, err := db.Exec(
		`INSERT INTO gpkg_spatial_ref_sys (srs_name, srs_id, organization, organization_coordsys_id, definition)
		 VALUES (?, ?, ?, ?, ?)`,
		c.String(), srsID, org, srsID, c.ESRIWKT(),
	)
	if err != nil {
		return fmt.Errorf("register srs %s: %w", c, err)
	}
	if srsID != 4326 {
		_, err = db.Exec(
			`INSERT INTO gpkg_spatial_ref_sys (srs_name, srs_id, organization, organization_coordsys_id, definition)
			 VALUES ('EPSG:4326', 4326, 'EPSG', 4326, ?)`,
			crs.WGS84.ESRIWKT(),
		)
	}
	return err
}

// gpkgGeometryBlob wraps WKB in the GeoPackage binary header: "GP" magic,
// version 0, little-endian flags, no envelope.
func gpkgGeometryBlob(g orb.Geometry, srsID int) ([]byte, error) {
	body, err := wkb.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encode geometry: %w", err)
	}
	header := make([]byte, 8)
	header[0] = 'G'
	header[1] = 'P'
	header[2] = 0
	header[3] = 0x01
	binary.LittleEndian.PutUint32(header[4:], uint32(srsID))
	return append(header, body...), nil
}

func gpkgGeometryFromBlob(blob []byte) (orb.Geometry, error) {
	if len(blob) < 8 || blob[0] != 'G' || blob[1] != 'P' {
		return nil, fmt.Errorf("not a geopackage geometry blob")
	}
	flags := blob[3]
	offset := 8
	switch (flags >> 1) & 0x07 {
	case 0:
	case 1:
		offset += 32
	case 2, 3:
		offset += 48
	case 4:
		offset += 64
	default:
		return nil, fmt.Errorf("invalid envelope indicator")
	}
	if len(blob) < offset {
		return nil, fmt.Errorf("truncated geometry blob")
	}
	return wkb.Unmarshal(blob[offset:])
}

// ReadGeoPackage loads features from the first registered feature layer.
// A limit above zero caps the number of rows read, for sampling.
func ReadGeoPackage(path string, limit int) (*geojson.FeatureCollection, crs.CRS, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, "", fmt.Errorf("open geopackage: %w", err)
	}
	defer db.Close()

	var table, geomCol string
	var srsID int
	err = db.QueryRow(
		`SELECT g.table_name, g.column_name, g.srs_id
		 FROM gpkg_geometry_columns g
		 JOIN gpkg_contents c ON c.table_name = g.table_name
		 WHERE c.data_type = 'features'
		 LIMIT 1`,
	).Scan(&table, &geomCol, &srsID)
	if err != nil {
		return nil, "", fmt.Errorf("no feature layer registered: %w", err)
	}

	query := fmt.Sprintf("SELECT * FROM %s", quoteIdent(table))
	if limit > 0 {
		query += " LIMIT " + strconv.Itoa(limit)
	}
	rows, err := db.Query(query)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	colNames, err := rows.Columns()
	if err != nil {
		return nil, "", err
	}

	fc := geojson.NewFeatureCollection()
	for rows.Next() {
		vals := make([]interface{}, len(colNames))
		ptrs := make([]interface{}, len(colNames))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, "", err
		}

		var geom orb.Geometry
		props := make(map[string]interface{})
		for i, name := range colNames {
			if name == geomCol {
				blob, _ := vals[i].([]byte)
				if geom, err = gpkgGeometryFromBlob(blob); err != nil {
					return nil, "", err
				}
				continue
			}
			if name == "fid" {
				continue
			}
			props[name] = normalizeSQLite(vals[i])
		}
		if geom == nil {
			continue
		}
		f := geojson.NewFeature(geom)
		f.Properties = props
		fc.Append(f)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	return fc, crs.FromEPSG(srsID), nil
}

func srsCode(c crs.CRS) int {
	s := c.String()
	if i := strings.LastIndex(s, ":"); i >= 0 {
		if code, err := strconv.Atoi(s[i+1:]); err == nil {
			return code
		}
	}
	return 4326
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqliteType(kind colKind) string {
	switch kind {
	case colInt:
		return "INTEGER"
	case colFloat:
		return "REAL"
	case colBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func sqliteValue(kind colKind, v interface{}) interface{} {
	if v == nil {
		return nil
	}
	switch kind {
	case colInt:
		return asInt(v)
	case colFloat:
		return asFloat(v)
	case colBool:
		if b, ok := v.(bool); ok {
			return b
		}
		return nil
	default:
		return formatValue(v)
	}
}

// normalizeSQLite maps driver scan values onto the property types the rest
// of the pipeline expects.
func normalizeSQLite(v interface{}) interface{} {
	switch t := v.(type) {
	case []byte:
		return string(t)
	default:
		return t
	}
}

func collectionBound(fc *geojson.FeatureCollection) orb.Bound {
	var bound orb.Bound
	first := true
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		b := f.Geometry.Bound()
		if first {
			bound = b
			first = false
		} else {
			bound = bound.Union(b)
		}
	}
	return bound
}
