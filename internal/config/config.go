package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"cyberhoot"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	LogLevel                string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_TIMEOUT" envDefault:"20s"`

	Postgres    Postgres
	Redis       Redis
	Security    Security
	Runtime     Runtime
	Upstream    Upstream
	OpenTDB     OpenTDB
	Leaderboard Leaderboard
	Lobby       Lobby
	Events      Events
	RateLimit   RateLimit
	Prewarm     Prewarm
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns int    `env:"PG_MAX_CONNS" envDefault:"10"`
}

// DSN renders the pgx keyword/value connection string.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode, p.MaxConns)
}

// Redis holds cache, lobby and leaderboard storage configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for signing and auth.
type Security struct {
	JWTSecret        string        `env:"JWT_SECRET,notEmpty"`
	JWTRefreshSecret string        `env:"JWT_REFRESH_SECRET" envDefault:""`
	AccessTokenTTL   time.Duration `env:"JWT_ACCESS_TTL" envDefault:"1h"`
	RefreshTokenTTL  time.Duration `env:"JWT_REFRESH_TTL" envDefault:"168h"`
	AllowedOrigins   []string      `env:"WS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// bcrypt work factor, 4 to 31.
	PasswordCost      int `env:"PASSWORD_BCRYPT_COST" envDefault:"12"`
	PasswordMinLength int `env:"PASSWORD_MIN_LENGTH" envDefault:"8"`
}

// Runtime groups gameplay defaults.
type Runtime struct {
	QuestionFetchTimeout time.Duration `env:"QUESTION_FETCH_TIMEOUT" envDefault:"4s"`
	QuestionCacheTTL     time.Duration `env:"QUESTION_CACHE_TTL" envDefault:"1h"`
	GradeTimeout         time.Duration `env:"GRADE_TIMEOUT" envDefault:"5s"`
	MaxGradePoints       int           `env:"MAX_GRADE_POINTS" envDefault:"500"`
	ExplanationCacheTTL  time.Duration `env:"EXPLANATION_CACHE_TTL" envDefault:"24h"`
	TickInterval         time.Duration `env:"TICK_INTERVAL" envDefault:"1s"`
	SessionIdleTTL       time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
	MaxSessions          int           `env:"MAX_ACTIVE_SESSIONS" envDefault:"5000"`
	PersistTimeout       time.Duration `env:"RESULT_PERSIST_TIMEOUT" envDefault:"10s"`
}

// Upstream configures the generator, grader and explanation collaborators.
type Upstream struct {
	GeneratorURL   string        `env:"GENERATOR_URL" envDefault:""`
	GraderURL      string        `env:"GRADER_URL" envDefault:""`
	ExplanationURL string        `env:"EXPLANATION_URL" envDefault:""`
	APIKey         string        `env:"UPSTREAM_API_KEY" envDefault:""`
	HTTPTimeout    time.Duration `env:"UPSTREAM_HTTP_TIMEOUT" envDefault:"6s"`
	MaxRetries     uint64        `env:"GENERATOR_MAX_RETRIES" envDefault:"2"`

	// Optional OAuth2 client credentials for all collaborators.
	OAuthTokenURL     string   `env:"UPSTREAM_OAUTH_TOKEN_URL" envDefault:""`
	OAuthClientID     string   `env:"UPSTREAM_OAUTH_CLIENT_ID" envDefault:""`
	OAuthClientSecret string   `env:"UPSTREAM_OAUTH_CLIENT_SECRET" envDefault:""`
	OAuthScopes       []string `env:"UPSTREAM_OAUTH_SCOPES" envSeparator:"," envDefault:""`
}

// OpenTDB configures the public trivia fallback.
type OpenTDB struct {
	Enabled  bool   `env:"OPENTDB_ENABLED" envDefault:"true"`
	BaseURL  string `env:"OPENTDB_BASE_URL" envDefault:"https://opentdb.com"`
	Category int    `env:"OPENTDB_CATEGORY" envDefault:"18"`
}

// Leaderboard governs snapshotting and broadcast behavior.
type Leaderboard struct {
	TopN             int           `env:"LEADERBOARD_TOP_N" envDefault:"50"`
	EntryTTL         time.Duration `env:"LEADERBOARD_ENTRY_TTL" envDefault:"720h"`
	PubSubChannel    string        `env:"LEADERBOARD_CHANNEL" envDefault:"lb:updates"`
	SnapshotInterval time.Duration `env:"LEADERBOARD_SNAPSHOT_INTERVAL" envDefault:"5m"`
	SnapshotTopN     int           `env:"LEADERBOARD_SNAPSHOT_TOP" envDefault:"50"`
}

// Lobby tunes multiplayer lobbies.
type Lobby struct {
	MaxPlayers    int           `env:"LOBBY_MAX_PLAYERS" envDefault:"6"`
	TTL           time.Duration `env:"LOBBY_TTL" envDefault:"2h"`
	LockWait      time.Duration `env:"LOBBY_LOCK_WAIT" envDefault:"1s"`
	FeedbackDelay time.Duration `env:"LOBBY_FEEDBACK_DELAY" envDefault:"3s"`
}

// Events configures domain event transport. Kafka is used only when brokers are set.
type Events struct {
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:""`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"quiz.completed"`
	BufferSize   int64    `env:"EVENTS_BUFFER_SIZE" envDefault:"256"`
}

// RateLimit bounds request rates per participant.
type RateLimit struct {
	RequestsPerSecond float64 `env:"RATE_LIMIT_RPS" envDefault:"10"`
	Burst             int     `env:"RATE_LIMIT_BURST" envDefault:"20"`
}

// Prewarm lists question topics fetched into the cache at startup.
type Prewarm struct {
	Topics     []string `env:"PREWARM_TOPICS" envSeparator:"," envDefault:""`
	Difficulty string   `env:"PREWARM_DIFFICULTY" envDefault:"all"`
}

// Load parses environment variables into App config.
func Load() (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks constraints that struct tags cannot express.
func (c *App) Validate() error {
	var errs []error
	if len(c.Security.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.Security.PasswordCost < 4 || c.Security.PasswordCost > 31 {
		errs = append(errs, errors.New("PASSWORD_BCRYPT_COST must be between 4 and 31"))
	}
	if c.Security.PasswordMinLength < 1 {
		errs = append(errs, errors.New("PASSWORD_MIN_LENGTH must be at least 1"))
	}
	if c.Runtime.TickInterval <= 0 {
		errs = append(errs, errors.New("TICK_INTERVAL must be positive"))
	}
	if c.Lobby.MaxPlayers < 1 {
		errs = append(errs, errors.New("LOBBY_MAX_PLAYERS must be at least 1"))
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}
	if (c.Upstream.OAuthTokenURL == "") != (c.Upstream.OAuthClientID == "") {
		errs = append(errs, errors.New("UPSTREAM_OAUTH_TOKEN_URL and UPSTREAM_OAUTH_CLIENT_ID must be set together"))
	}
	if len(c.Events.KafkaBrokers) > 0 && c.Events.KafkaTopic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set"))
	}
	return errors.Join(errs...)
}

// Production reports whether the app runs in production.
func (c *App) Production() bool {
	return c.Env == "production"
}
