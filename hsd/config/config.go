package config

import (
	"fmt"
	"path/filepath"
	"strings"

	internal "github.com/moeinghaeini/HateSpeechDetection/hsd"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
// Components receive the sections they need at construction time instead of
// reaching for a process-wide singleton.
type Config struct {
	Data     DataConfig     `mapstructure:"data"`
	Model    ModelConfig    `mapstructure:"model"`
	Training TrainingConfig `mapstructure:"training"`
	Eval     EvalConfig     `mapstructure:"eval"`
	Store    StoreConfig    `mapstructure:"store"`
	Paths    PathsConfig    `mapstructure:"paths"`
}

// DataConfig stores dataset and preprocessing settings.
type DataConfig struct {
	TextColumn        string  `mapstructure:"textColumn"`
	LabelColumn       string  `mapstructure:"labelColumn"`
	AuxLabelColumn    string  `mapstructure:"auxLabelColumn"`
	MaxLength         int     `mapstructure:"maxLength"`
	BatchSize         int     `mapstructure:"batchSize"`
	TrainRatio        float64 `mapstructure:"trainRatio"`
	ValRatio          float64 `mapstructure:"valRatio"`
	TestRatio         float64 `mapstructure:"testRatio"`
	Seed              int64   `mapstructure:"seed"`
	RemoveURLs        bool    `mapstructure:"removeUrls"`
	RemoveMentions    bool    `mapstructure:"removeMentions"`
	RemoveHashtags    bool    `mapstructure:"removeHashtags"`
	Lowercase         bool    `mapstructure:"lowercase"`
	MinLength         int     `mapstructure:"minLength"`
	BalanceDataset    bool    `mapstructure:"balanceDataset"`
	BalanceMethod     string  `mapstructure:"balanceMethod"`
	PreprocessWorkers int     `mapstructure:"preprocessWorkers"`
}

// ModelConfig stores classifier architecture settings.
type ModelConfig struct {
	Architecture       string  `mapstructure:"architecture"`
	EncoderProvider    string  `mapstructure:"encoderProvider"`
	EncoderModelPath   string  `mapstructure:"encoderModelPath"`
	VocabPath          string  `mapstructure:"vocabPath"`
	HiddenSize         int     `mapstructure:"hiddenSize"`
	NumLabels          int     `mapstructure:"numLabels"`
	NumAuxiliaryLabels int     `mapstructure:"numAuxiliaryLabels"`
	DropoutRate        float64 `mapstructure:"dropoutRate"`
	AttentionHeads     int     `mapstructure:"attentionHeads"`
	Device             string  `mapstructure:"device"`
}

// TrainingConfig stores optimizer and trainer settings.
type TrainingConfig struct {
	LearningRate     float64 `mapstructure:"learningRate"`
	WeightDecay      float64 `mapstructure:"weightDecay"`
	MaxEpochs        int     `mapstructure:"maxEpochs"`
	Patience         int     `mapstructure:"patience"`
	WarmupSteps      int     `mapstructure:"warmupSteps"`
	MaxGradNorm      float64 `mapstructure:"maxGradNorm"`
	UseFocalLoss     bool    `mapstructure:"useFocalLoss"`
	FocalGamma       float64 `mapstructure:"focalGamma"`
	FocalAlpha       float64 `mapstructure:"focalAlpha"`
	AuxLossWeight    float64 `mapstructure:"auxLossWeight"`
	CheckpointOnBest bool    `mapstructure:"checkpointOnBest"`
	Seed             int64   `mapstructure:"seed"`
}

// EvalConfig stores evaluation output settings.
type EvalConfig struct {
	ClassNames    []string `mapstructure:"classNames"`
	SaveArtifacts bool     `mapstructure:"saveArtifacts"`
}

// StoreConfig stores run-store connection details.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
	Type    string `mapstructure:"type"`
}

// PathsConfig stores output locations.
type PathsConfig struct {
	ModelsDir  string `mapstructure:"modelsDir"`
	ResultsDir string `mapstructure:"resultsDir"`
	CacheDir   string `mapstructure:"cacheDir"`
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("config")
		viper.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Data defaults
	viper.SetDefault("data.textColumn", "text")
	viper.SetDefault("data.labelColumn", "label")
	viper.SetDefault("data.auxLabelColumn", "")
	viper.SetDefault("data.maxLength", 128)
	viper.SetDefault("data.batchSize", 16)
	viper.SetDefault("data.trainRatio", 0.7)
	viper.SetDefault("data.valRatio", 0.15)
	viper.SetDefault("data.testRatio", 0.15)
	viper.SetDefault("data.seed", 42)
	viper.SetDefault("data.removeUrls", true)
	viper.SetDefault("data.removeMentions", true)
	viper.SetDefault("data.removeHashtags", false)
	viper.SetDefault("data.lowercase", true)
	viper.SetDefault("data.minLength", 3)
	viper.SetDefault("data.balanceDataset", false)
	viper.SetDefault("data.balanceMethod", "undersample")
	viper.SetDefault("data.preprocessWorkers", 0)

	// Model defaults
	viper.SetDefault("model.architecture", "base")
	viper.SetDefault("model.encoderProvider", "hash")
	viper.SetDefault("model.encoderModelPath", "")
	viper.SetDefault("model.vocabPath", "vocab.txt")
	viper.SetDefault("model.hiddenSize", 384)
	viper.SetDefault("model.numLabels", 2)
	viper.SetDefault("model.numAuxiliaryLabels", 0)
	viper.SetDefault("model.dropoutRate", 0.1)
	viper.SetDefault("model.attentionHeads", 4)
	viper.SetDefault("model.device", "cpu")

	// Training defaults
	viper.SetDefault("training.learningRate", 2e-5)
	viper.SetDefault("training.weightDecay", 0.01)
	viper.SetDefault("training.maxEpochs", 5)
	viper.SetDefault("training.patience", 3)
	viper.SetDefault("training.warmupSteps", 0)
	viper.SetDefault("training.maxGradNorm", 1.0)
	viper.SetDefault("training.useFocalLoss", false)
	viper.SetDefault("training.focalGamma", 2.0)
	viper.SetDefault("training.focalAlpha", 1.0)
	viper.SetDefault("training.auxLossWeight", 0.5)
	viper.SetDefault("training.checkpointOnBest", true)
	viper.SetDefault("training.seed", 42)

	// Eval defaults
	viper.SetDefault("eval.classNames", []string{"Non-Hate", "Hate"})
	viper.SetDefault("eval.saveArtifacts", false)

	// Store defaults
	viper.SetDefault("store.enabled", false)
	viper.SetDefault("store.dsn", internal.DefaultStoreDSN)
	viper.SetDefault("store.type", internal.DefaultStoreType)

	// Path defaults
	viper.SetDefault("paths.modelsDir", internal.DefaultModelsDir)
	viper.SetDefault("paths.resultsDir", internal.DefaultResultsDir)
	viper.SetDefault("paths.cacheDir", internal.DefaultCacheDir)

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults will be used.
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := AppConfig.Validate(); err != nil {
		return nil, err
	}

	return &AppConfig, nil
}

// Validate checks cross-field constraints before any computation starts.
func (c *Config) Validate() error {
	if sum := c.Data.TrainRatio + c.Data.ValRatio + c.Data.TestRatio; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("split ratios must sum to 1.0, got %.3f", sum)
	}
	if c.Data.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.Data.BatchSize)
	}
	if c.Model.NumLabels < 2 {
		return fmt.Errorf("numLabels must be at least 2, got %d", c.Model.NumLabels)
	}
	if c.Training.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %g", c.Training.LearningRate)
	}
	if c.Data.BalanceDataset {
		switch c.Data.BalanceMethod {
		case "undersample", "oversample":
		default:
			return fmt.Errorf("unknown balance method: %s", c.Data.BalanceMethod)
		}
	}
	return nil
}
