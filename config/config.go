// Package config loads the layered configuration for every cyphercoord
// subsystem (defaults, then config file, then environment overrides).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved configuration for a Coordinator instance and
// the subsystems it wires together.
type Config struct {
	// WorkingDir is the root of the persisted-state layout (backups,
	// exports, imports, logs, cache, temp subdirectories).
	WorkingDir string

	// DebugMode is the flag a caller passes to validator.Error.FormatError
	// to get the full JSON rendering instead of the terse one. Nothing in
	// this module reads it.
	DebugMode bool

	// LogLevel is the minimum logging.Level name (DEBUG, INFO, WARN, ERROR).
	LogLevel string

	Validator  ValidatorConfig
	Optimizer  OptimizerConfig
	Txn        TxnConfig
	Batch      BatchConfig
	Monitor    MonitorConfig
	RateLimit  RateLimitConfig
	Coordinator CoordinatorConfig
}

// ValidatorConfig bounds and policy for the validator/sanitizer pipeline.
type ValidatorConfig struct {
	MaxQueryLength    int
	MaxParams         int
	MaxStringLength   int
	MaxListLength     int
	MaxObjectNesting  int
	MaxObjectKeys     int
	MaxComplexity     int
	StrictMode        bool
	AllowedKeywords   []string
	SanitizeByDefault bool
}

// OptimizerConfig sizes and timing for the plan/result caches.
type OptimizerConfig struct {
	PlanCacheSize       int
	ResultCacheSize     int
	BaseTTL             time.Duration
	ConservativeRewrite bool
	SweepInterval       time.Duration
}

// TxnConfig bounds transaction concurrency and timing.
type TxnConfig struct {
	MaxActiveTransactions int
	DefaultTimeout        time.Duration
	DeadlockTimeout       time.Duration
	SweepInterval         time.Duration
	DeadlockCheckInterval time.Duration
	MaxRetries            int
	BaseRetryDelay        time.Duration
}

// BatchConfig configures batch execution and result streaming defaults.
type BatchConfig struct {
	DefaultBatchSize     int
	DefaultConcurrency   int
	RetryAttempts        int
	RetryDelay           time.Duration
	StreamSweepInterval  time.Duration
	StreamIdleExpiry     time.Duration
	StreamSingletonLimit int
}

// MonitorConfig tunes the performance monitor's window and thresholds.
type MonitorConfig struct {
	WindowSize            time.Duration
	SlowQueryThreshold    time.Duration
	ResponseTimeThreshold time.Duration
	ErrorRateThreshold    float64
	SecuritySurgeThreshold int
	CleanupInterval       time.Duration
}

// RateLimitConfig configures the admission governor and per-client quotas.
type RateLimitConfig struct {
	GlobalRatePerSecond float64
	GlobalBurst         int
	PerMinuteLimit      int
	PerHourLimit        int
	CleanupInterval     time.Duration
}

// CoordinatorConfig tunes the coordinator's own background behavior.
type CoordinatorConfig struct {
	HealthCheckInterval     time.Duration
	DefaultQueryTimeout     time.Duration
	WarningErrorRate        float64
	UnhealthyErrorRate      float64
	WarningActiveTxnPercent float64
}

// Defaults returns Config populated with the reference defaults, mirroring
// the teacher's DefaultOptions()/DefaultQueryCacheConfig()/
// DefaultSQLValidationConfig() constructors.
func Defaults() Config {
	return Config{
		WorkingDir: "./cyphercoord-data",
		DebugMode:  false,
		LogLevel:   "INFO",
		Validator: ValidatorConfig{
			MaxQueryLength:   65536,
			MaxParams:        256,
			MaxStringLength:  16384,
			MaxListLength:    10000,
			MaxObjectNesting: 10,
			MaxObjectKeys:    500,
			MaxComplexity:    50,
			StrictMode:       true,
			AllowedKeywords: []string{
				"MATCH", "OPTIONAL", "WHERE", "RETURN", "WITH", "AS", "ORDER",
				"BY", "ASC", "DESC", "LIMIT", "SKIP", "CREATE", "MERGE", "SET",
				"DELETE", "DETACH", "REMOVE", "UNWIND", "DISTINCT", "AND",
				"OR", "NOT", "XOR", "IN", "IS", "NULL", "TRUE", "FALSE",
				"COUNT", "SUM", "AVG", "MIN", "MAX", "COLLECT", "CASE",
				"WHEN", "THEN", "ELSE", "END", "UNION", "ALL",
			},
			SanitizeByDefault: true,
		},
		Optimizer: OptimizerConfig{
			PlanCacheSize:       500,
			ResultCacheSize:     1000,
			BaseTTL:             60 * time.Second,
			ConservativeRewrite: false,
			SweepInterval:       60 * time.Second,
		},
		Txn: TxnConfig{
			MaxActiveTransactions: 100,
			DefaultTimeout:        30 * time.Second,
			DeadlockTimeout:       10 * time.Second,
			SweepInterval:         30 * time.Second,
			DeadlockCheckInterval: 5 * time.Second,
			MaxRetries:            3,
			BaseRetryDelay:        100 * time.Millisecond,
		},
		Batch: BatchConfig{
			DefaultBatchSize:     50,
			DefaultConcurrency:   4,
			RetryAttempts:        3,
			RetryDelay:           100 * time.Millisecond,
			StreamSweepInterval:  time.Hour,
			StreamIdleExpiry:     time.Hour,
			StreamSingletonLimit: 10,
		},
		Monitor: MonitorConfig{
			WindowSize:             24 * time.Hour,
			SlowQueryThreshold:     500 * time.Millisecond,
			ResponseTimeThreshold:  2 * time.Second,
			ErrorRateThreshold:     0.05,
			SecuritySurgeThreshold: 10,
			CleanupInterval:        time.Hour,
		},
		RateLimit: RateLimitConfig{
			GlobalRatePerSecond: 200,
			GlobalBurst:         400,
			PerMinuteLimit:      120,
			PerHourLimit:        3000,
			CleanupInterval:     5 * time.Minute,
		},
		Coordinator: CoordinatorConfig{
			HealthCheckInterval:     60 * time.Second,
			DefaultQueryTimeout:     10 * time.Second,
			WarningErrorRate:        0.05,
			UnhealthyErrorRate:      0.2,
			WarningActiveTxnPercent: 0.8,
		},
	}
}

// Load builds a Config from defaults, an optional config file, and
// environment variables prefixed CYPHERCOORD_ (e.g.
// CYPHERCOORD_VALIDATOR_MAXQUERYLENGTH). configPath may be empty to skip
// file loading.
func Load(configPath string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetEnvPrefix("CYPHERCOORD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindDefaults(v, cfg)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
	}

	cfg.WorkingDir = v.GetString("workingdir")
	cfg.DebugMode = v.GetBool("debugmode")
	cfg.LogLevel = v.GetString("loglevel")

	cfg.Validator.MaxQueryLength = v.GetInt("validator.maxquerylength")
	cfg.Validator.MaxParams = v.GetInt("validator.maxparams")
	cfg.Validator.MaxStringLength = v.GetInt("validator.maxstringlength")
	cfg.Validator.MaxListLength = v.GetInt("validator.maxlistlength")
	cfg.Validator.MaxObjectNesting = v.GetInt("validator.maxobjectnesting")
	cfg.Validator.MaxObjectKeys = v.GetInt("validator.maxobjectkeys")
	cfg.Validator.MaxComplexity = v.GetInt("validator.maxcomplexity")
	cfg.Validator.StrictMode = v.GetBool("validator.strictmode")
	cfg.Validator.SanitizeByDefault = v.GetBool("validator.sanitizebydefault")
	if kws := v.GetStringSlice("validator.allowedkeywords"); len(kws) > 0 {
		cfg.Validator.AllowedKeywords = kws
	}

	cfg.Optimizer.PlanCacheSize = v.GetInt("optimizer.plancachesize")
	cfg.Optimizer.ResultCacheSize = v.GetInt("optimizer.resultcachesize")
	cfg.Optimizer.BaseTTL = v.GetDuration("optimizer.basettl")
	cfg.Optimizer.ConservativeRewrite = v.GetBool("optimizer.conservativerewrite")
	cfg.Optimizer.SweepInterval = v.GetDuration("optimizer.sweepinterval")

	cfg.Txn.MaxActiveTransactions = v.GetInt("txn.maxactivetransactions")
	cfg.Txn.DefaultTimeout = v.GetDuration("txn.defaulttimeout")
	cfg.Txn.DeadlockTimeout = v.GetDuration("txn.deadlocktimeout")
	cfg.Txn.SweepInterval = v.GetDuration("txn.sweepinterval")
	cfg.Txn.DeadlockCheckInterval = v.GetDuration("txn.deadlockcheckinterval")
	cfg.Txn.MaxRetries = v.GetInt("txn.maxretries")
	cfg.Txn.BaseRetryDelay = v.GetDuration("txn.baseretrydelay")

	cfg.Batch.DefaultBatchSize = v.GetInt("batch.defaultbatchsize")
	cfg.Batch.DefaultConcurrency = v.GetInt("batch.defaultconcurrency")
	cfg.Batch.RetryAttempts = v.GetInt("batch.retryattempts")
	cfg.Batch.RetryDelay = v.GetDuration("batch.retrydelay")
	cfg.Batch.StreamSweepInterval = v.GetDuration("batch.streamsweepinterval")
	cfg.Batch.StreamIdleExpiry = v.GetDuration("batch.streamidleexpiry")
	cfg.Batch.StreamSingletonLimit = v.GetInt("batch.streamsingletonlimit")

	cfg.Monitor.WindowSize = v.GetDuration("monitor.windowsize")
	cfg.Monitor.SlowQueryThreshold = v.GetDuration("monitor.slowquerythreshold")
	cfg.Monitor.ResponseTimeThreshold = v.GetDuration("monitor.responsetimethreshold")
	cfg.Monitor.ErrorRateThreshold = v.GetFloat64("monitor.errorratethreshold")
	cfg.Monitor.SecuritySurgeThreshold = v.GetInt("monitor.securitysurgethreshold")
	cfg.Monitor.CleanupInterval = v.GetDuration("monitor.cleanupinterval")

	cfg.RateLimit.GlobalRatePerSecond = v.GetFloat64("ratelimit.globalratepersecond")
	cfg.RateLimit.GlobalBurst = v.GetInt("ratelimit.globalburst")
	cfg.RateLimit.PerMinuteLimit = v.GetInt("ratelimit.perminutelimit")
	cfg.RateLimit.PerHourLimit = v.GetInt("ratelimit.perhourlimit")
	cfg.RateLimit.CleanupInterval = v.GetDuration("ratelimit.cleanupinterval")

	cfg.Coordinator.HealthCheckInterval = v.GetDuration("coordinator.healthcheckinterval")
	cfg.Coordinator.DefaultQueryTimeout = v.GetDuration("coordinator.defaultquerytimeout")
	cfg.Coordinator.WarningErrorRate = v.GetFloat64("coordinator.warningerrorrate")
	cfg.Coordinator.UnhealthyErrorRate = v.GetFloat64("coordinator.unhealthyerrorrate")
	cfg.Coordinator.WarningActiveTxnPercent = v.GetFloat64("coordinator.warningactivetxnpercent")

	return cfg, nil
}

// bindDefaults seeds viper with every default value so GetX calls fall back
// to them when neither file nor environment overrides are present.
func bindDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("workingdir", cfg.WorkingDir)
	v.SetDefault("debugmode", cfg.DebugMode)
	v.SetDefault("loglevel", cfg.LogLevel)

	v.SetDefault("validator.maxquerylength", cfg.Validator.MaxQueryLength)
	v.SetDefault("validator.maxparams", cfg.Validator.MaxParams)
	v.SetDefault("validator.maxstringlength", cfg.Validator.MaxStringLength)
	v.SetDefault("validator.maxlistlength", cfg.Validator.MaxListLength)
	v.SetDefault("validator.maxobjectnesting", cfg.Validator.MaxObjectNesting)
	v.SetDefault("validator.maxobjectkeys", cfg.Validator.MaxObjectKeys)
	v.SetDefault("validator.maxcomplexity", cfg.Validator.MaxComplexity)
	v.SetDefault("validator.strictmode", cfg.Validator.StrictMode)
	v.SetDefault("validator.sanitizebydefault", cfg.Validator.SanitizeByDefault)
	v.SetDefault("validator.allowedkeywords", cfg.Validator.AllowedKeywords)

	v.SetDefault("optimizer.plancachesize", cfg.Optimizer.PlanCacheSize)
	v.SetDefault("optimizer.resultcachesize", cfg.Optimizer.ResultCacheSize)
	v.SetDefault("optimizer.basettl", cfg.Optimizer.BaseTTL)
	v.SetDefault("optimizer.conservativerewrite", cfg.Optimizer.ConservativeRewrite)
	v.SetDefault("optimizer.sweepinterval", cfg.Optimizer.SweepInterval)

	v.SetDefault("txn.maxactivetransactions", cfg.Txn.MaxActiveTransactions)
	v.SetDefault("txn.defaulttimeout", cfg.Txn.DefaultTimeout)
	v.SetDefault("txn.deadlocktimeout", cfg.Txn.DeadlockTimeout)
	v.SetDefault("txn.sweepinterval", cfg.Txn.SweepInterval)
	v.SetDefault("txn.deadlockcheckinterval", cfg.Txn.DeadlockCheckInterval)
	v.SetDefault("txn.maxretries", cfg.Txn.MaxRetries)
	v.SetDefault("txn.baseretrydelay", cfg.Txn.BaseRetryDelay)

	v.SetDefault("batch.defaultbatchsize", cfg.Batch.DefaultBatchSize)
	v.SetDefault("batch.defaultconcurrency", cfg.Batch.DefaultConcurrency)
	v.SetDefault("batch.retryattempts", cfg.Batch.RetryAttempts)
	v.SetDefault("batch.retrydelay", cfg.Batch.RetryDelay)
	v.SetDefault("batch.streamsweepinterval", cfg.Batch.StreamSweepInterval)
	v.SetDefault("batch.streamidleexpiry", cfg.Batch.StreamIdleExpiry)
	v.SetDefault("batch.streamsingletonlimit", cfg.Batch.StreamSingletonLimit)

	v.SetDefault("monitor.windowsize", cfg.Monitor.WindowSize)
	v.SetDefault("monitor.slowquerythreshold", cfg.Monitor.SlowQueryThreshold)
	v.SetDefault("monitor.responsetimethreshold", cfg.Monitor.ResponseTimeThreshold)
	v.SetDefault("monitor.errorratethreshold", cfg.Monitor.ErrorRateThreshold)
	v.SetDefault("monitor.securitysurgethreshold", cfg.Monitor.SecuritySurgeThreshold)
	v.SetDefault("monitor.cleanupinterval", cfg.Monitor.CleanupInterval)

	v.SetDefault("ratelimit.globalratepersecond", cfg.RateLimit.GlobalRatePerSecond)
	v.SetDefault("ratelimit.globalburst", cfg.RateLimit.GlobalBurst)
	v.SetDefault("ratelimit.perminutelimit", cfg.RateLimit.PerMinuteLimit)
	v.SetDefault("ratelimit.perhourlimit", cfg.RateLimit.PerHourLimit)
	v.SetDefault("ratelimit.cleanupinterval", cfg.RateLimit.CleanupInterval)

	v.SetDefault("coordinator.healthcheckinterval", cfg.Coordinator.HealthCheckInterval)
	v.SetDefault("coordinator.defaultquerytimeout", cfg.Coordinator.DefaultQueryTimeout)
	v.SetDefault("coordinator.warningerrorrate", cfg.Coordinator.WarningErrorRate)
	v.SetDefault("coordinator.unhealthyerrorrate", cfg.Coordinator.UnhealthyErrorRate)
	v.SetDefault("coordinator.warningactivetxnpercent", cfg.Coordinator.WarningActiveTxnPercent)
}
