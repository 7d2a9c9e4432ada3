package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aeqip/imgsim/types"
)

const (
	configName = ".imgsim"
	envPrefix  = "IMGSIM"
)

// GlobalAppConfig holds the global application configuration instance.
var GlobalAppConfig types.AppConfig

// validate is a single validator instance; it caches struct info.
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// InitConfig reads in config file and ENV variables if set. Defaults,
// file values, env vars and flags are merged by viper, then unmarshaled
// and validated. Invalid configuration aborts the process: a service
// scoring against the wrong dimension or thresholds is worse than one
// that refuses to start.
func InitConfig() {
	// Load .env file first if present. Missing is fine.
	_ = godotenv.Load()

	// Environment handling must be set up before reading the config
	// file, e.g. IMGSIM_SIMILARITY_SCHEME=fast.
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfgFileFlag := viper.GetString("config")
	if cfgFileFlag != "" {
		viper.SetConfigFile(cfgFileFlag)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(".")    // ./.imgsim.yaml
		viper.AddConfigPath(home)   // $HOME/.imgsim.yaml
		viper.SetConfigName(configName)
	}

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if cfgFileFlag != "" {
				fmt.Fprintln(os.Stderr, "Error: Specified config file not found:", cfgFileFlag)
				os.Exit(1)
			}
			// No config file found by the search paths; defaults and
			// environment variables carry the run.
		} else {
			fmt.Fprintln(os.Stderr, "Error reading config file:", viper.ConfigFileUsed(), "-", err)
			os.Exit(1)
		}
	}

	setDefaults()

	if err := viper.Unmarshal(&GlobalAppConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshaling config: %s\n", err)
		os.Exit(1)
	}

	if err := validate.Struct(&GlobalAppConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation error: %s\n", err)
		os.Exit(1)
	}
}

func setDefaults() {
	viper.SetDefault("feature.dimension", 2048)

	viper.SetDefault("similarity.scheme", "full")
	viper.SetDefault("similarity.precisionBits", 7)
	viper.SetDefault("similarity.enableEntanglement", false)

	viper.SetDefault("thresholds.goodConfidence", 0.85)
	viper.SetDefault("thresholds.highConfidence", 0.95)
	viper.SetDefault("thresholds.exactMatch", 0.98)

	viper.SetDefault("extractor.baseURL", "http://localhost:8001")
	viper.SetDefault("extractor.model", "resnet50")
	viper.SetDefault("extractor.timeoutSeconds", 30)

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)

	viper.SetDefault("storage.dataDir", ".imgsim")
}

// GetConfig returns the loaded application configuration.
func GetConfig() *types.AppConfig {
	return &GlobalAppConfig
}
