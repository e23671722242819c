package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"secretsweep/internal/logger"
)

const (
	BackendJSON  = "json"
	BackendBolt  = "bolt"
	CloneGitCLI  = "git"
	CloneGoGit   = "go-git"
	DefaultCache = ".github_scanner_cache.json"
)

// Config is built once in main and handed to every component.
type Config struct {
	Keyword      string // Palavras-chave separadas por vírgula.
	KeywordsFile string // Arquivo com uma palavra-chave por linha.
	Token        string // Token da API do GitHub (opcional).
	Issues       bool   // Busca em issues em vez de código.

	Output  string   // Nome base dos arquivos de saída.
	Formats []string // xlsx, csv, json, xml, txt.

	MaxSizeMB      int  // Tamanho máximo do repositório.
	MinYear        int  // Ano mínimo do último commit.
	StrictMetadata bool // Rejeita quando o metadado não pôde ser obtido.

	TempDir      string
	CacheFile    string
	CacheBackend string // json|bolt
	CloneBackend string // git|go-git

	TrufflehogPath  string
	DetectorTimeout time.Duration

	APIBaseURL  string
	PageDelay   time.Duration // Intervalo mínimo entre páginas.
	MaxRetries  int
	MaxRateWait time.Duration

	PGDSN          string
	EmailSender    string
	EmailRecipient string
	AWSRegion      string
	SQSQueueURL    string

	LogLevel   string
	LogFile    string
	LogSecrets bool
}

// Load returns the environment defaults. A .env file in the working
// directory is read first when present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Token:           os.Getenv("GITHUB_TOKEN"),
		Output:          envOr("SWEEP_OUTPUT", "github_secrets"),
		MaxSizeMB:       envInt("SWEEP_MAX_SIZE_MB", 500),
		MinYear:         envInt("SWEEP_MIN_YEAR", 2024),
		StrictMetadata:  envBool("SWEEP_STRICT_METADATA", false),
		TempDir:         envOr("SWEEP_TEMP_DIR", "./temp_repos"),
		CacheFile:       envOr("SWEEP_CACHE_FILE", DefaultCache),
		CacheBackend:    envOr("SWEEP_CACHE_BACKEND", BackendJSON),
		CloneBackend:    envOr("SWEEP_CLONE_BACKEND", CloneGitCLI),
		TrufflehogPath:  envOr("TRUFFLEHOG_PATH", "trufflehog"),
		DetectorTimeout: envDuration("SWEEP_DETECTOR_TIMEOUT", 10*time.Minute),
		APIBaseURL:      os.Getenv("GITHUB_API_URL"),
		PageDelay:       envDuration("SWEEP_PAGE_DELAY", time.Second),
		MaxRetries:      envInt("SWEEP_MAX_RETRIES", 3),
		MaxRateWait:     envDuration("SWEEP_MAX_RATE_WAIT", 90*time.Second),
		PGDSN:           os.Getenv("PG_DSN"),
		AWSRegion:       envOr("AWS_REGION", "eu-central-1"),
		SQSQueueURL:     os.Getenv("SQS_QUEUE_URL"),
		LogLevel:        envOr("SWEEP_LOG_LEVEL", "info"),
		LogFile:         envOr("SWEEP_LOG_FILE", "logs/secretsweep.log"),
		LogSecrets:      envBool("SWEEP_LOG_SECRETS", false),
	}
}

// BindFlags registers the command-line flags on fs, using the values
// already in c as defaults.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Keyword, "keyword", "k", c.Keyword, "Single keyword or comma-separated keywords to search")
	fs.StringVar(&c.KeywordsFile, "keywords-file", c.KeywordsFile, "File with keywords (one per line)")
	fs.StringVarP(&c.Token, "token", "t", c.Token, "GitHub API token (env: GITHUB_TOKEN)")
	fs.StringVarP(&c.Output, "output", "o", c.Output, "Output filename without extension")
	fs.IntVar(&c.MaxSizeMB, "max-size", c.MaxSizeMB, "Max repo size in MB")
	fs.IntVar(&c.MinYear, "min-year", c.MinYear, "Minimum year of last commit")
	fs.BoolVar(&c.Issues, "issues", c.Issues, "Search only in GitHub issues instead of code")
	fs.BoolVar(&c.StrictMetadata, "strict-metadata", c.StrictMetadata, "Reject candidates whose size, visibility or commit date cannot be resolved")

	for _, f := range AllFormats {
		fs.Bool(f, false, "Save results in "+strings.ToUpper(f)+" format")
	}

	fs.StringVar(&c.TempDir, "temp-dir", c.TempDir, "Directory for ephemeral working copies")
	fs.StringVar(&c.CacheFile, "cache-file", c.CacheFile, "Cross-run cache of scanned repositories")
	fs.StringVar(&c.CacheBackend, "cache-backend", c.CacheBackend, "Cache backend: json|bolt")
	fs.StringVar(&c.CloneBackend, "clone-backend", c.CloneBackend, "Clone backend: git|go-git")
	fs.StringVar(&c.TrufflehogPath, "trufflehog", c.TrufflehogPath, "Path to the trufflehog binary")
	fs.DurationVar(&c.DetectorTimeout, "detector-timeout", c.DetectorTimeout, "Timeout for one detector run")
	fs.StringVar(&c.APIBaseURL, "api-url", c.APIBaseURL, "GitHub API base URL (default: public GitHub)")
	fs.DurationVar(&c.PageDelay, "page-delay", c.PageDelay, "Minimum delay between search page requests")
	fs.IntVar(&c.MaxRetries, "max-retries", c.MaxRetries, "Retries for rate-limited or failing API calls")
	fs.DurationVar(&c.MaxRateWait, "max-rate-wait", c.MaxRateWait, "Longest wait honoured for a rate-limit reset")

	fs.StringVar(&c.PGDSN, "pg-dsn", c.PGDSN, "PostgreSQL DSN for storing findings (optional)")
	fs.StringVar(&c.EmailSender, "email-sender", c.EmailSender, "Sender email address (must be verified in SES)")
	fs.StringVar(&c.EmailRecipient, "email-recipient", c.EmailRecipient, "Recipient email address")
	fs.StringVar(&c.AWSRegion, "aws-region", c.AWSRegion, "AWS region for SES and SQS")
	fs.StringVar(&c.SQSQueueURL, "sqs-queue-url", c.SQSQueueURL, "SQS queue receiving the run event (optional)")

	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug|info|warn|error")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "Rotating JSON log file (empty disables)")
	fs.BoolVar(&c.LogSecrets, "log-secrets", c.LogSecrets, "Log raw secrets instead of masking them")
}

var AllFormats = []string{"xlsx", "csv", "json", "xml", "txt"}

// ResolveFormats reads the format switches from fs; XLSX is used when
// none is set.
func (c *Config) ResolveFormats(fs *pflag.FlagSet) {
	c.Formats = c.Formats[:0]
	for _, f := range AllFormats {
		if on, err := fs.GetBool(f); err == nil && on {
			c.Formats = append(c.Formats, f)
		}
	}
	if len(c.Formats) == 0 {
		c.Formats = []string{"xlsx"}
	}
}

// MaxSizeKB is the size ceiling in the unit the API reports.
func (c Config) MaxSizeKB() int {
	return c.MaxSizeMB * 1024
}

// Keywords resolves the keyword list from -k or --keywords-file.
func (c Config) Keywords() ([]string, error) {
	if c.Keyword != "" {
		return splitKeywords(c.Keyword), nil
	}
	if c.KeywordsFile == "" {
		return nil, nil
	}
	f, err := os.Open(c.KeywordsFile)
	if err != nil {
		return nil, fmt.Errorf("open keywords file: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if kw := strings.TrimSpace(sc.Text()); kw != "" {
			out = append(out, kw)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read keywords file: %w", err)
	}
	return out, nil
}

func splitKeywords(s string) []string {
	var out []string
	for _, kw := range strings.Split(s, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

func Validate(c *Config, keywords []string) error {
	if c.Keyword != "" && c.KeywordsFile != "" {
		return fmt.Errorf("--keyword and --keywords-file are mutually exclusive")
	}
	if len(keywords) == 0 {
		return fmt.Errorf("no keywords specified. Use -k or --keywords-file")
	}
	if c.MaxSizeMB <= 0 {
		return fmt.Errorf("max size must be positive, got %d", c.MaxSizeMB)
	}
	if c.MinYear < 1970 || c.MinYear > 9999 {
		return fmt.Errorf("min year out of range: %d", c.MinYear)
	}
	if c.CacheBackend != BackendJSON && c.CacheBackend != BackendBolt {
		return fmt.Errorf("invalid cache backend %q. Valid values: json, bolt", c.CacheBackend)
	}
	if c.CloneBackend != CloneGitCLI && c.CloneBackend != CloneGoGit {
		return fmt.Errorf("invalid clone backend %q. Valid values: git, go-git", c.CloneBackend)
	}
	if c.DetectorTimeout <= 0 {
		return fmt.Errorf("detector timeout must be positive, got %s", c.DetectorTimeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w. Valid values: debug, info, warn, error", err)
	}
	if (c.EmailSender == "") != (c.EmailRecipient == "") {
		return fmt.Errorf("--email-sender and --email-recipient must be set together")
	}
	return nil
}

// EmailEnabled reports whether the mail report is configured.
func (c Config) EmailEnabled() bool {
	return c.EmailSender != "" && c.EmailRecipient != ""
}

func envOr(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	val, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return val
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultVal
}
