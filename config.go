package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"

	"github.com/dnldd/zone/shared"
	"github.com/joho/godotenv"
)

// defaultTradeStep is the bucket size used for bars recorded as trades when none is configured.
const defaultTradeStep = 0.01

// Config is the configuration struct for the service.
type Config struct {
	// Size is the accumulation zone size, as a percentage of a bar's volume.
	Size float64
	// Border is the accumulation zone border policy (average, highlow or maxmin).
	Border string
	// DataFilepath is the filepath to the bucket data.
	DataFilepath string
	// TradeStep is the bucket size used to aggregate bars recorded as trades.
	TradeStep float64
	// DBEndpoint is the bucket database endpoint.
	DBEndpoint string
	// DBUser is the bucket database user.
	DBUser string
	// DBPass is the bucket database user pass.
	DBPass string
	// Workers is the number of concurrent bar workers.
	Workers int
	// Interval is the recomputation interval in seconds.
	Interval int
	// Ingest stores the bucket data file in the bucket database instead of computing zones.
	Ingest bool

	registeredFlags map[string]bool
}

// Validate asserts the config sane inputs.
func (cfg *Config) Validate() error {
	var errs error

	if cfg.Ingest {
		if cfg.DataFilepath == "" {
			errs = errors.Join(errs, fmt.Errorf("ingestion requires a bucket data filepath"))
		}
		if cfg.DBEndpoint == "" {
			errs = errors.Join(errs, fmt.Errorf("ingestion requires a database endpoint"))
		}
		if !(cfg.TradeStep > 0) {
			errs = errors.Join(errs, fmt.Errorf("trade step must be greater than 0, got %v", cfg.TradeStep))
		}

		return errs
	}

	if !(cfg.Size > 0 && cfg.Size <= 100) {
		errs = errors.Join(errs, fmt.Errorf("zone size must be greater than 0 and at most 100, got %v", cfg.Size))
	}

	_, err := shared.ParseBorderPolicy(cfg.Border)
	if err != nil {
		errs = errors.Join(errs, err)
	}

	switch {
	case cfg.DataFilepath == "" && cfg.DBEndpoint == "":
		errs = errors.Join(errs, fmt.Errorf("no bucket data filepath or database endpoint provided"))
	case cfg.DataFilepath != "" && cfg.DBEndpoint != "":
		errs = errors.Join(errs, fmt.Errorf("only one of bucket data filepath or database endpoint can be provided"))
	}

	if cfg.Workers < 0 {
		errs = errors.Join(errs, fmt.Errorf("workers cannot be negative"))
	}
	if cfg.Interval < 0 {
		errs = errors.Join(errs, fmt.Errorf("interval cannot be negative"))
	}
	if cfg.DataFilepath != "" && !(cfg.TradeStep > 0) {
		errs = errors.Join(errs, fmt.Errorf("trade step must be greater than 0, got %v", cfg.TradeStep))
	}

	return errs
}

// registerFlag registers command line arguments of any type and tracks them to avoid reregistration.
func (cfg *Config) registerFlag(name string, value interface{}, usage string) error {
	if cfg.registeredFlags == nil {
		cfg.registeredFlags = make(map[string]bool)
	}

	if cfg.registeredFlags[name] {
		return nil
	}

	cfg.registeredFlags[name] = true

	defValue := os.Getenv(name)
	val := reflect.ValueOf(value)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("%s: value must be a non-nil pointer", name)
	}

	switch val.Elem().Kind() {
	case reflect.String:
		def := defValue
		if def == "" {
			def = *value.(*string)
		}
		flag.StringVar(value.(*string), name, def, usage)
	case reflect.Bool:
		var def bool
		if defValue != "" {
			def, _ = strconv.ParseBool(defValue)
		}
		flag.BoolVar(value.(*bool), name, def, usage)
	case reflect.Int:
		def := *value.(*int)
		if defValue != "" {
			def, _ = strconv.Atoi(defValue)
		}
		flag.IntVar(value.(*int), name, def, usage)
	case reflect.Float64:
		def := *value.(*float64)
		if defValue != "" {
			def, _ = strconv.ParseFloat(defValue, 64)
		}
		flag.Float64Var(value.(*float64), name, def, usage)
	default:
		return fmt.Errorf("%s: unsupported type", name)
	}

	return nil
}

// loadConfig loads the configuration from environment variables and command line flags.
func loadConfig(cfg *Config, path string) error {
	if path == "" {
		path = ".env"
	}

	// Check if the expected .env file exists before loading it.
	_, err := os.Stat(path)
	if err == nil {
		err := godotenv.Load(path)
		if err != nil {
			return fmt.Errorf("loading .env file: %w", err)
		}
	}

	if cfg.Border == "" {
		cfg.Border = "highlow"
	}
	if cfg.TradeStep == 0 {
		cfg.TradeStep = defaultTradeStep
	}

	// Register command line arguments using loaded environment variables as defaults.
	flags := []struct {
		name  string
		value interface{}
		usage string
	}{
		{"size", &cfg.Size, "the accumulation zone size, as a percentage of bar volume"},
		{"border", &cfg.Border, "the accumulation zone border policy (average, highlow, maxmin)"},
		{"datafilepath", &cfg.DataFilepath, "the bucket data filepath (.json or .parquet)"},
		{"tradestep", &cfg.TradeStep, "the bucket size for bars recorded as trades"},
		{"ingest", &cfg.Ingest, "store the bucket data file in the bucket database and exit"},
		{"dbendpoint", &cfg.DBEndpoint, "the bucket database endpoint"},
		{"dbuser", &cfg.DBUser, "the bucket database user"},
		{"dbpass", &cfg.DBPass, "the bucket database user pass"},
		{"workers", &cfg.Workers, "the number of concurrent bar workers"},
		{"interval", &cfg.Interval, "the recomputation interval in seconds, 0 computes once"},
	}
	for _, f := range flags {
		err = cfg.registerFlag(f.name, f.value, f.usage)
		if err != nil {
			return err
		}
	}

	// Parse command-line flags.
	flag.Parse()

	return cfg.Validate()
}
