package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr     string
	LogLevel string

	// DataDir holds the dataset files; individual paths can be overridden.
	DataDir     string
	GLiMPath    string
	GLiMLayer   string
	GLHYMPSPath string

	// Upload and admission limits.
	MaxUploadBytes int64
	MaxClipAreaKm2 float64
	AreaCheck      bool

	// ClipWorkers bounds concurrent overlay computations.
	ClipWorkers int

	// Result cache of serialized responses; 0 disables.
	ResultCacheSize     int
	ResultCacheMaxBytes int64

	// TmpDir for transient serializer output; empty means os.TempDir.
	TmpDir string

	Metrics MetricsCfg
}

func FromEnv() Config {
	dataDir := getenv("DATA_DIR", "data")

	return Config{
		Addr:     getenv("ADDR", ":8000"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		DataDir:     dataDir,
		GLiMPath:    getenv("GLIM_PATH", filepath.Join(dataDir, "LiMW_GIS_2015.gdb", "LiMW_GIS 2015.gdb")),
		GLiMLayer:   getenv("GLIM_LAYER", "GLiM_export"),
		GLHYMPSPath: getenv("GLHYMPS_PATH", filepath.Join(dataDir, "GLHYMPS", "GLHYMPS.shp")),

		MaxUploadBytes: getint64("MAX_UPLOAD_BYTES", 50*1024*1024),
		MaxClipAreaKm2: getfloat("MAX_CLIP_AREA_KM2", 500000),
		AreaCheck:      getbool("CLIP_AREA_CHECK", false),

		ClipWorkers: getint("CLIP_WORKERS", 4),

		ResultCacheSize:     getint("RESULT_CACHE_SIZE", 16),
		ResultCacheMaxBytes: getint64("RESULT_CACHE_MAX_BYTES", 8*1024*1024),

		TmpDir: getenv("TMP_DIR", ""),

		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", false),
			Addr:    getenv("METRICS_ADDR", ":9090"),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}
