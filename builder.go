package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Builder assembles an [Engine].
//
// Builder instances are intended to be configured during initialization and
// then used once. Build may be called only once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts    AccountStore
	resetTokens ResetTokenStore
	notifier    Notifier
	auditSink   AuditSink
	logger      zerolog.Logger
	catalog     *Catalog
	clock       func() time.Time
	scheme      password.Scheme

	built bool
}

// New returns a Builder holding [DefaultConfig] and the [DefaultCatalog].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		logger: zerolog.Nop(),
	}
}

// WithConfig replaces the configuration. The value is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used by the session store, the throttles, and
// the reset preview cache. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountStore sets the account repository. Required.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accounts = store
	return b
}

// WithResetTokenStore sets the durable password-reset token store. Required.
func (b *Builder) WithResetTokenStore(store ResetTokenStore) *Builder {
	b.resetTokens = store
	return b
}

// WithNotifier sets the delivery channel for reset and verification links.
// Without one, notifications are only logged at debug level.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink sets the sink behind the asynchronous audit dispatcher.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger for best-effort failures.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithCatalog replaces the default roles, permissions, operation table and
// list scopes. The store/postgres package can load one from the database.
func (b *Builder) WithCatalog(c Catalog) *Builder {
	b.catalog = &c
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithPasswordScheme replaces the Argon2id primary scheme built from
// Config.Password. Legacy bcrypt hashes are still verified and upgraded.
func (b *Builder) WithPasswordScheme(s password.Scheme) *Builder {
	b.scheme = s
	return b
}

// WithClock overrides the time source. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration and wires every component.
//
// Build returns an error for an invalid config, a missing required
// dependency, or an inconsistent catalog (an operation referencing an
// unknown permission or role, or a default role that does not exist).
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, fmt.Errorf("%w: redis client required", ErrEngineNotReady)
	}
	if b.accounts == nil {
		return nil, fmt.Errorf("%w: account store required", ErrEngineNotReady)
	}
	if b.resetTokens == nil {
		return nil, fmt.Errorf("%w: reset token store required", ErrEngineNotReady)
	}

	catalog := DefaultCatalog()
	if b.catalog != nil {
		catalog = *b.catalog
	}

	// -------- PERMISSION REGISTRY --------
	registry := permission.NewRegistry()
	for _, def := range catalog.Permissions {
		if _, err := registry.Register(def.Name, def.Description); err != nil {
			return nil, err
		}
	}
	registry.Freeze()

	// -------- ROLE MANAGER --------
	roles := permission.NewRoleManager(registry)
	for _, r := range catalog.Roles {
		if err := roles.RegisterRole(r.Name, r.Label, r.Permissions); err != nil {
			return nil, err
		}
	}
	roles.Freeze()

	if _, ok := roles.Role(cfg.Account.DefaultRole); !ok {
		return nil, errors.New("Account DefaultRole does not exist in role manager")
	}

	// -------- OPERATION TABLE --------
	table := permission.NewTable(cfg.Authorization.SuperRole)
	if catalog.Operations != nil {
		for op, rule := range catalog.Operations.Rules {
			table.Define(op, rule)
		}
	}
	if err := table.Validate(registry, roles); err != nil {
		return nil, err
	}
	scopes := make(permission.Scopes, len(catalog.Scopes))
	for role, scope := range catalog.Scopes {
		if _, ok := roles.Role(role); !ok {
			return nil, fmt.Errorf("%w: scope for role %s", permission.ErrUnknown, role)
		}
		scopes[role] = scope
	}

	// -------- CREDENTIALS --------
	primary := b.scheme
	if primary == nil {
		argon, err := password.NewArgon2(password.Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		})
		if err != nil {
			return nil, err
		}
		primary = argon
	}
	hasher := password.NewChain(primary, password.NewBcrypt(cfg.Password.BcryptCost))
	// Compared against when the e-mail is unknown so both paths cost one hash.
	dummyHash, err := hasher.Hash("authcore-timing-equalizer")
	if err != nil {
		return nil, err
	}

	sealer, err := internal.NewSealer(cfg.TOTP.EncryptionKey)
	if err != nil {
		return nil, err
	}

	links, err := jwt.NewLinkSigner(jwt.Config{
		TTL:           cfg.EmailVerification.LinkTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    cloneBytes(cfg.EmailVerification.SigningKey),
		Issuer:        cfg.EmailVerification.Issuer,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:      cfg,
		registry:    registry,
		roles:       roles,
		table:       table,
		scopes:      scopes,
		accounts:    b.accounts,
		resetTokens: b.resetTokens,
		notifier:    b.notifier,
		logger:      b.logger.With().Str("component", "authcore").Logger(),
		hasher:      hasher,
		dummyHash:   dummyHash,
		sealer:      sealer,
		links:       links,
		totp:        newTOTP(cfg.TOTP),
		now:         time.Now,
	}
	if b.clock != nil {
		engine.now = b.clock
	}

	// -------- REDIS COMPONENTS --------
	engine.sessions = session.NewStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.IdleTTL)
	engine.limiter = rate.New(b.redis, cfg.RateLimit.RedisPrefix, map[string]rate.Rule{
		BucketLogin:        {Limit: cfg.RateLimit.Login.Limit, Window: cfg.RateLimit.Login.Window},
		BucketRegistration: {Limit: cfg.RateLimit.Registration.Limit, Window: cfg.RateLimit.Registration.Window},
		BucketTwoFactor:    {Limit: cfg.RateLimit.TwoFactor.Limit, Window: cfg.RateLimit.TwoFactor.Window},
		BucketAPI:          {Limit: cfg.RateLimit.API.Limit, Window: cfg.RateLimit.API.Window},
	})
	engine.previews = stores.NewResetPreviewStore(b.redis, cfg.PasswordReset.PreviewPrefix, cfg.PasswordReset.PreviewTTL)

	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink, engine.logger)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true
	return engine, nil
}
