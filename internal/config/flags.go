package config

import "flag"

// Flags are the command-line overrides shared by every forgetool subcommand.
type Flags struct {
	Config       *string
	Debug        *bool
	Output       *string
	Workers      *int
	CacheDir     *string
	MissingAlpha *string
	Registry     *string
	LogFile      *string
}

// RegisterFlags adds the shared flags to fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		Config:       fs.String("config", "", "Path to config file"),
		Debug:        fs.Bool("debug", false, "Enable debug logging"),
		Output:       fs.String("o", "", "Output directory"),
		Workers:      fs.Int("workers", 0, "Parallel tile encoders"),
		CacheDir:     fs.String("cache", "", "Tile cache directory"),
		MissingAlpha: fs.String("missing-alpha", "", "Alpha for layers without a splat: opaque or transparent"),
		Registry:     fs.String("registry", "", "ID registry database path"),
		LogFile:      fs.String("log", "", "Log file path"),
	}
}

// ConfigPath returns the explicit config path if provided via -config.
func (f *Flags) ConfigPath() string {
	if f == nil {
		return ""
	}
	return *f.Config
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if *f.Debug {
		cfg.Logging.Level = "debug"
	}
	if *f.Output != "" {
		cfg.Build.OutputDir = *f.Output
	}
	if *f.Workers > 0 {
		cfg.Build.Workers = *f.Workers
	}
	if *f.CacheDir != "" {
		cfg.Build.CacheDir = *f.CacheDir
	}
	if *f.MissingAlpha != "" {
		cfg.Terrain.MissingAlpha = *f.MissingAlpha
	}
	if *f.Registry != "" {
		cfg.Registry.Path = *f.Registry
	}
	if *f.LogFile != "" {
		cfg.Logging.LogFile = *f.LogFile
	}
}
