// Package config loads HiveQ's startup configuration from an optional
// .properties file, overridable by command-line flags.
package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// Config is everything cmd/hiveqd needs to wire an engine and listener.
type Config struct {
	Port     int
	WALEnable bool
	WALDir   string
	WALFiles int
	Drain    bool
}

// Default returns the built-in defaults, used when neither a properties
// file nor a flag overrides a field.
func Default() Config {
	return Config{
		Port:      11300,
		WALEnable: false,
		WALDir:    "./hiveq-data",
		WALFiles:  8,
		Drain:     false,
	}
}

// Load reads an optional .properties file (server.port, wal.enable,
// wal.dir, wal.files) and then applies flag overrides from fs, which the
// caller has already parsed against args.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := applyPropertiesFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	applyFlags(&cfg, fs)
	return cfg, nil
}

func applyPropertiesFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "server.port":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.Port = n
			}
		case "wal.enable":
			cfg.WALEnable = value == "true"
		case "wal.dir":
			cfg.WALDir = value
		case "wal.files":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.WALFiles = n
			}
		}
	}
	return scanner.Err()
}

// RegisterFlags declares the flags Load reads overrides from.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Int("port", 0, "TCP port to listen on (overrides server.port)")
	fs.Bool("wal-enable", false, "enable the write-ahead log (overrides wal.enable)")
	fs.String("wal-dir", "", "write-ahead log directory (overrides wal.dir)")
	fs.Int("wal-files", 0, "number of write-ahead log shard files (overrides wal.files)")
	fs.Bool("drain", false, "start the engine in drain mode, rejecting new puts")
}

func applyFlags(cfg *Config, fs *pflag.FlagSet) {
	if fs.Changed("port") {
		cfg.Port, _ = fs.GetInt("port")
	}
	if fs.Changed("wal-enable") {
		cfg.WALEnable, _ = fs.GetBool("wal-enable")
	}
	if fs.Changed("wal-dir") {
		cfg.WALDir, _ = fs.GetString("wal-dir")
	}
	if fs.Changed("wal-files") {
		cfg.WALFiles, _ = fs.GetInt("wal-files")
	}
	if fs.Changed("drain") {
		cfg.Drain, _ = fs.GetBool("drain")
	}
}
