package main

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeGeomFile(t *testing.T, dir, name string, g geometrySidecar) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(g); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	return path
}

func writeRawFloat32(t *testing.T, dir, name string, vals []float32) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, vals); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func identitySidecar(ns, nr, nc int64) geometrySidecar {
	return geometrySidecar{
		NSlices: ns, NRows: nr, NCols: nc,
		PxlDx: 1, PxlDy: 1, PxlDz: 1,
		RowUnit: [3]float64{1, 0, 0},
		ColUnit: [3]float64{0, 1, 0},
	}
}

func TestLoadVolume_RoundTripsRawData(t *testing.T) {
	dir := t.TempDir()
	geomPath := writeGeomFile(t, dir, "geom.json", identitySidecar(1, 2, 2))
	dataPath := writeRawFloat32(t, dir, "data.raw", []float32{1, 2, 3, 4})

	v, err := loadVolume(dataPath, geomPath)
	if err != nil {
		t.Fatalf("loadVolume: %v", err)
	}
	got, _ := v.Value(0, 1, 1, 0)
	if got != 4 {
		t.Errorf("Value(0,1,1,0) = %v, want 4", got)
	}
}

func TestLoadVolume_MissingGeometryErrors(t *testing.T) {
	dir := t.TempDir()
	dataPath := writeRawFloat32(t, dir, "data.raw", []float32{1})
	if _, err := loadVolume(dataPath, filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("loadVolume: want error for missing geometry sidecar, got nil")
	}
}

func TestRunRegister_EndToEndWritesField(t *testing.T) {
	dir := t.TempDir()
	geomPath := writeGeomFile(t, dir, "geom.json", identitySidecar(1, 2, 2))
	fixedData := writeRawFloat32(t, dir, "fixed.raw", []float32{0, 0, 0, 0})
	movingData := writeRawFloat32(t, dir, "moving.raw", []float32{0, 0, 0, 0})
	outPath := filepath.Join(dir, "field.raw")

	err := runRegister([]string{
		"-fixed-data", fixedData, "-fixed-geom", geomPath,
		"-moving-data", movingData, "-moving-geom", geomPath,
		"-o", outPath,
		"-max-iterations", "3",
	})
	if err != nil {
		t.Fatalf("runRegister: %v", err)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("output field not written: %v", err)
	}
}

func TestRunRegister_RejectsMissingFlags(t *testing.T) {
	if err := runRegister(nil); err == nil {
		t.Fatalf("runRegister: want error when required flags are missing, got nil")
	}
}
