package config

import (
	"time"

	"github.com/japaniel/novelreader/pkg/difficulty"
	"github.com/japaniel/novelreader/pkg/vocab"
)

// Config is the root application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Storage    StorageConfig    `yaml:"storage"`
	Vocab      VocabConfig      `yaml:"vocab"`
	Difficulty DifficultyConfig `yaml:"difficulty"`
	Explain    ExplainConfig    `yaml:"explain"`
	Document   DocumentConfig   `yaml:"document"`
	Report     ReportConfig     `yaml:"report"`
	Ingest     IngestConfig     `yaml:"ingest"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// StorageConfig selects where the vocabulary lives. The SQLite database
// also holds reading progress and session history for every backend.
type StorageConfig struct {
	Backend  string `yaml:"backend"   env:"STORAGE_BACKEND"   env-default:"sqlite"`
	Path     string `yaml:"path"      env:"STORAGE_PATH"      env-default:"novelreader.db"`
	FilePath string `yaml:"file_path" env:"STORAGE_FILE_PATH" env-default:"vocabulary.json"`
}

// VocabConfig mirrors vocab.Policy.
type VocabConfig struct {
	ExposureRate     float64       `yaml:"exposure_rate"      env:"VOCAB_EXPOSURE_RATE"      env-default:"0.10"`
	KnownBoost       float64       `yaml:"known_boost"        env:"VOCAB_KNOWN_BOOST"        env-default:"0.60"`
	MaxFeedbackDelta float64       `yaml:"max_feedback_delta" env:"VOCAB_MAX_FEEDBACK_DELTA" env-default:"0.40"`
	UnknownRetain    float64       `yaml:"unknown_retain"     env:"VOCAB_UNKNOWN_RETAIN"     env-default:"0.50"`
	Floor            float64       `yaml:"floor"              env:"VOCAB_FLOOR"              env-default:"0.10"`
	StalenessWindow  time.Duration `yaml:"staleness_window"   env:"VOCAB_STALENESS_WINDOW"   env-default:"336h"`
	DecayRate        float64       `yaml:"decay_rate"         env:"VOCAB_DECAY_RATE"         env-default:"0.05"`
	LearningAt       float64       `yaml:"learning_at"        env:"VOCAB_LEARNING_AT"        env-default:"0.15"`
	FamiliarAt       float64       `yaml:"familiar_at"        env:"VOCAB_FAMILIAR_AT"        env-default:"0.50"`
	MasteredAt       float64       `yaml:"mastered_at"        env:"VOCAB_MASTERED_AT"        env-default:"0.85"`
}

// Policy converts the section into a vocab.Policy.
func (c VocabConfig) Policy() vocab.Policy {
	p := vocab.DefaultPolicy()
	p.ExposureRate = c.ExposureRate
	p.KnownBoost = c.KnownBoost
	p.MaxFeedbackDelta = c.MaxFeedbackDelta
	p.UnknownRetain = c.UnknownRetain
	p.Floor = c.Floor
	p.StalenessWindow = c.StalenessWindow
	p.DecayRate = c.DecayRate
	p.LearningAt = c.LearningAt
	p.FamiliarAt = c.FamiliarAt
	p.MasteredAt = c.MasteredAt
	return p
}

// DifficultyConfig mirrors difficulty.Config.
type DifficultyConfig struct {
	RarityWeight             float64 `yaml:"rarity_weight"               env:"DIFFICULTY_RARITY_WEIGHT"               env-default:"0.75"`
	StructureWeight          float64 `yaml:"structure_weight"            env:"DIFFICULTY_STRUCTURE_WEIGHT"            env-default:"0.25"`
	EasyBelow                float64 `yaml:"easy_below"                  env:"DIFFICULTY_EASY_BELOW"                  env-default:"0.33"`
	ModerateBelow            float64 `yaml:"moderate_below"              env:"DIFFICULTY_MODERATE_BELOW"              env-default:"0.66"`
	KnownProficiency         float64 `yaml:"known_proficiency"           env:"DIFFICULTY_KNOWN_PROFICIENCY"           env-default:"0.50"`
	LongSentence             float64 `yaml:"long_sentence"               env:"DIFFICULTY_LONG_SENTENCE"               env-default:"35"`
	ClauseMarkersPerSentence float64 `yaml:"clause_markers_per_sentence" env:"DIFFICULTY_CLAUSE_MARKERS_PER_SENTENCE" env-default:"3"`
	ReaderLevelInfluence     float64 `yaml:"reader_level_influence"      env:"DIFFICULTY_READER_LEVEL_INFLUENCE"      env-default:"0.5"`
	WordsPerMinute           float64 `yaml:"words_per_minute"            env:"DIFFICULTY_WORDS_PER_MINUTE"            env-default:"130"`
}

// Analyzer converts the section into a difficulty.Config.
func (c DifficultyConfig) Analyzer() difficulty.Config {
	d := difficulty.DefaultConfig()
	d.RarityWeight = c.RarityWeight
	d.StructureWeight = c.StructureWeight
	d.EasyBelow = c.EasyBelow
	d.ModerateBelow = c.ModerateBelow
	d.KnownProficiency = c.KnownProficiency
	d.LongSentence = c.LongSentence
	d.ClauseMarkersPerSentence = c.ClauseMarkersPerSentence
	d.ReaderLevelInfluence = c.ReaderLevelInfluence
	d.WordsPerMinute = c.WordsPerMinute
	return d
}

// Explanation providers.
const (
	ProviderNone      = "none"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// ExplainConfig selects and tunes the explanation provider.
type ExplainConfig struct {
	Provider      string        `yaml:"provider"       env:"EXPLAIN_PROVIDER"       env-default:"none"`
	Model         string        `yaml:"model"          env:"EXPLAIN_MODEL"`
	APIKey        string        `yaml:"api_key"        env:"ANTHROPIC_API_KEY"`
	BaseURL       string        `yaml:"base_url"       env:"EXPLAIN_BASE_URL"`
	Timeout       time.Duration `yaml:"timeout"        env:"EXPLAIN_TIMEOUT"        env-default:"60s"`
	DifficultOnly bool          `yaml:"difficult_only" env:"EXPLAIN_DIFFICULT_ONLY" env-default:"true"`
	Detailed      bool          `yaml:"detailed"       env:"EXPLAIN_DETAILED"       env-default:"false"`
}

// DocumentConfig holds document loading settings.
type DocumentConfig struct {
	MinWords int   `yaml:"min_words" env:"DOCUMENT_MIN_WORDS" env-default:"0"`
	MaxBytes int64 `yaml:"max_bytes" env:"DOCUMENT_MAX_BYTES" env-default:"52428800"`
}

// ReportConfig holds report export settings.
type ReportConfig struct {
	Format string `yaml:"format" env:"REPORT_FORMAT" env-default:"markdown"`
	Dir    string `yaml:"dir"    env:"REPORT_DIR"    env-default:"reports"`
}

// IngestConfig tunes the concurrent pipeline and the reading journal.
type IngestConfig struct {
	Workers       int           `yaml:"workers"        env:"INGEST_WORKERS"        env-default:"4"`
	BatchSize     int           `yaml:"batch_size"     env:"INGEST_BATCH_SIZE"     env-default:"50"`
	FlushInterval time.Duration `yaml:"flush_interval" env:"INGEST_FLUSH_INTERVAL" env-default:"2s"`
}
