package geo

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/silver-economy/internal/fetcher"
	"github.com/sells-group/silver-economy/internal/region"
)

// Attribute names tried, in order, for the municipality name and UF of a
// boundary record. The first set matches the IBGE municipal mesh.
var (
	nameFields = []string{"NM_MUN", "NM_MUNICIP", "NOME", "NAME"}
	ufFields   = []string{"SIGLA_UF", "SIGLA", "UF"}
)

// Boundary is one municipality polygon.
type Boundary struct {
	Name     string
	Region   string
	Geometry *geom.MultiPolygon
}

// Boundaries indexes municipality polygons by folded name and UF.
type Boundaries struct {
	byKey  map[string]*Boundary
	byName map[string][]*Boundary
}

func newBoundaries() *Boundaries {
	return &Boundaries{
		byKey:  make(map[string]*Boundary),
		byName: make(map[string][]*Boundary),
	}
}

func joinKey(name, uf string) string {
	return region.FoldName(name) + "/" + strings.ToUpper(strings.TrimSpace(uf))
}

func (b *Boundaries) add(bd *Boundary) {
	b.byKey[joinKey(bd.Name, bd.Region)] = bd
	folded := region.FoldName(bd.Name)
	b.byName[folded] = append(b.byName[folded], bd)
}

// Len returns the number of boundaries.
func (b *Boundaries) Len() int {
	n := 0
	for _, list := range b.byName {
		n += len(list)
	}
	return n
}

// Lookup finds the polygon of a municipality. When uf is empty or the
// boundary file carries no UF, the name alone must be unambiguous.
func (b *Boundaries) Lookup(name, uf string) (*Boundary, bool) {
	if uf != "" {
		if bd, ok := b.byKey[joinKey(name, uf)]; ok {
			return bd, true
		}
	}
	list := b.byName[region.FoldName(name)]
	if len(list) != 1 {
		return nil, false
	}
	if uf != "" && list[0].Region != "" && !strings.EqualFold(list[0].Region, uf) {
		return nil, false
	}
	return list[0], true
}

// LoadBoundaries reads a polygon shapefile. source is a .shp path or a .zip
// archive (local or remote) holding one.
func LoadBoundaries(ctx context.Context, opener *fetcher.Opener, source string) (*Boundaries, error) {
	if !strings.EqualFold(filepath.Ext(source), ".zip") {
		return ReadShapefile(source)
	}

	tmp, err := os.MkdirTemp("", "silver-boundaries-")
	if err != nil {
		return nil, eris.Wrap(err, "geo: create temp dir")
	}
	defer os.RemoveAll(tmp) //nolint:errcheck

	rc, err := opener.Open(ctx, source)
	if err != nil {
		return nil, eris.Wrap(err, "geo: open boundaries")
	}
	zipPath := filepath.Join(tmp, "boundaries.zip")
	if err := saveTo(rc, zipPath); err != nil {
		return nil, err
	}

	extractDir := filepath.Join(tmp, "shp")
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "geo: create extract dir")
	}
	if err := extractZIP(zipPath, extractDir); err != nil {
		return nil, eris.Wrap(err, "geo: extract boundaries")
	}
	shpPath, err := findFileByExt(extractDir, ".shp")
	if err != nil {
		return nil, eris.Wrap(err, "geo: find .shp file")
	}
	return ReadShapefile(shpPath)
}

// ReadShapefile loads every polygon record of a shapefile. Records without
// a name or a polygon geometry are skipped.
func ReadShapefile(path string) (*Boundaries, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	nameIdx := fieldIndex(reader, nameFields...)
	if nameIdx < 0 {
		return nil, eris.Errorf("geo: no municipality name field (%s) in %s", strings.Join(nameFields, ", "), path)
	}
	ufIdx := fieldIndex(reader, ufFields...)

	b := newBoundaries()
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		name := attribute(reader, nameIdx)
		poly, ok := shape.(*shp.Polygon)
		if name == "" || !ok {
			skipped++
			continue
		}
		mp := polygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}
		bd := &Boundary{Name: name, Geometry: mp}
		if ufIdx >= 0 {
			bd.Region = strings.ToUpper(attribute(reader, ufIdx))
		}
		b.add(bd)
	}

	zap.L().Info("geo: boundaries loaded",
		zap.String("path", path),
		zap.Int("boundaries", b.Len()),
		zap.Int("skipped", skipped),
	)
	return b, nil
}

func attribute(reader *shp.Reader, idx int) string {
	return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
}

// fieldIndex returns the index of the first named field present, or -1.
func fieldIndex(reader *shp.Reader, names ...string) int {
	fields := reader.Fields()
	for _, name := range names {
		for i, f := range fields {
			if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
				return i
			}
		}
	}
	return -1
}

// polygonToMultiPolygon converts a shapefile polygon, one ring per part, to
// a MultiPolygon in WGS84.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("geo: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("geo: skipping malformed polygon", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

func saveTo(rc io.ReadCloser, dest string) error {
	defer rc.Close() //nolint:errcheck

	f, err := os.Create(dest)
	if err != nil {
		return eris.Wrap(err, "geo: create file")
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(f, rc); err != nil {
		return eris.Wrap(err, "geo: write file")
	}
	return nil
}

// extractZIP extracts a ZIP archive to the destination directory, flattening paths.
func extractZIP(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "open zip")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		destPath := filepath.Join(destDir, filepath.Base(f.Name))

		rc, err := f.Open()
		if err != nil {
			return eris.Wrapf(err, "open zip entry %s", f.Name)
		}
		outFile, err := os.Create(destPath)
		if err != nil {
			_ = rc.Close()
			return eris.Wrapf(err, "create %s", destPath)
		}
		_, err = io.Copy(outFile, rc)
		_ = outFile.Close()
		_ = rc.Close()
		if err != nil {
			return eris.Wrapf(err, "extract %s", f.Name)
		}
	}
	return nil
}

// findFileByExt finds the first file with the given extension in a directory.
func findFileByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrap(err, "read directory")
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", eris.Errorf("no %s file found in %s", ext, dir)
}
