package zone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/go-logr/logr"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"zonekeeper/internal/account"
	"zonekeeper/internal/catalog"
	"zonekeeper/internal/engine"
	"zonekeeper/internal/logging"
	"zonekeeper/internal/snapshot"
	"zonekeeper/internal/store"
)

const (
	envTokens       = "CLOUDFLARE_API_TOKENS"
	envDNSOnlyToken = "CLOUDFLARE_API_KEY_DNS_ONLY"
	envToken        = "CLOUDFLARE_API_TOKEN"
)

func findEnvArg(argv []string) string {
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		if strings.HasPrefix(arg, "--env=") {
			return strings.TrimPrefix(arg, "--env=")
		}
		if arg == "--env" && i+1 < len(argv) {
			return argv[i+1]
		}
	}
	return ""
}

func loadEnvFromFlag(cmd *cobra.Command) error {
	path := mustGetStringFlag(cmd, "env")
	if path == "" {
		return nil
	}
	if err := godotenv.Overload(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// mustGetStringFlag retrieves a string flag value.
// Errors are ignored because cobra guarantees flags exist if they're defined.
func mustGetStringFlag(cmd *cobra.Command, name string) string {
	val, _ := cmd.Flags().GetString(name)
	return val
}

func mustGetBoolFlag(cmd *cobra.Command, name string) bool {
	val, _ := cmd.Flags().GetBool(name)
	return val
}

func mustGetStringArrayFlag(cmd *cobra.Command, name string) []string {
	val, _ := cmd.Flags().GetStringArray(name)
	return val
}

func mustGetIntFlag(cmd *cobra.Command, name string) int {
	val, _ := cmd.Flags().GetInt(name)
	return val
}

// stringSetting returns the flag when set on the command line, then the
// config key, then the flag default.
func stringSetting(cmd *cobra.Command, flag, key string) string {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		return f.Value.String()
	}
	if key != "" && viper.IsSet(key) {
		return viper.GetString(key)
	}
	return mustGetStringFlag(cmd, flag)
}

func boolSetting(cmd *cobra.Command, flag, key string) bool {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		return mustGetBoolFlag(cmd, flag)
	}
	if key != "" && viper.IsSet(key) {
		return viper.GetBool(key)
	}
	return mustGetBoolFlag(cmd, flag)
}

func intSetting(cmd *cobra.Command, flag, key string) int {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		return mustGetIntFlag(cmd, flag)
	}
	if key != "" && viper.IsSet(key) {
		return viper.GetInt(key)
	}
	return mustGetIntFlag(cmd, flag)
}

func floatSetting(cmd *cobra.Command, flag, key string) float64 {
	val, _ := cmd.Flags().GetFloat64(flag)
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		return val
	}
	if key != "" && viper.IsSet(key) {
		return viper.GetFloat64(key)
	}
	return val
}

func durationSetting(cmd *cobra.Command, flag, key string) time.Duration {
	val, _ := cmd.Flags().GetDuration(flag)
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		return val
	}
	if key != "" && viper.IsSet(key) {
		return viper.GetDuration(key)
	}
	return val
}

// tokenSpecs collects credential specs. Explicit --token flags win outright;
// otherwise the config file list comes first, then the environment.
func tokenSpecs(flagTokens, configTokens []string, getenv func(string) string) []string {
	if len(flagTokens) > 0 {
		return flagTokens
	}
	specs := append([]string(nil), configTokens...)
	for _, spec := range strings.Split(getenv(envTokens), ",") {
		if strings.TrimSpace(spec) != "" {
			specs = append(specs, spec)
		}
	}
	if token := strings.TrimSpace(getenv(envDNSOnlyToken)); token != "" {
		specs = append(specs, "dns-only="+token)
	}
	if token := strings.TrimSpace(getenv(envToken)); token != "" {
		specs = append(specs, "default="+token)
	}
	return specs
}

func loadCredentials(cmd *cobra.Command) (account.CredentialSet, error) {
	specs := tokenSpecs(mustGetStringArrayFlag(cmd, "token"), viper.GetStringSlice("tokens"), os.Getenv)
	creds, err := account.ParseCredentials(specs...)
	if err != nil {
		return nil, err
	}
	if creds.Empty() {
		return nil, fmt.Errorf("%w: use --token, the tokens config key or %s", account.ErrNoCredentials, envTokens)
	}
	return creds, nil
}

func buildLogger(cmd *cobra.Command) (logr.Logger, error) {
	level := stringSetting(cmd, "log-level", "log_level")
	if viper.GetBool("verbose") && (level == "" || level == "info") {
		level = "debug"
	}
	return logging.New(logging.Options{
		Level:  level,
		Format: stringSetting(cmd, "log-format", "log_format"),
		Output: cmd.ErrOrStderr(),
	})
}

func storeOptions(cmd *cobra.Command, log logr.Logger) store.Options {
	return store.Options{
		BaseURL:   stringSetting(cmd, "api-url", "api_url"),
		PageSize:  intSetting(cmd, "page-size", "page_size"),
		RateLimit: floatSetting(cmd, "rate-limit", "rate_limit"),
		Comment:   stringSetting(cmd, "record-comment", "record_comment"),
		Logger:    log,
	}
}

// app bundles what every zone command needs.
type app struct {
	log      logr.Logger
	creds    account.CredentialSet
	opts     store.Options
	resolver *account.Resolver
}

func newApp(cmd *cobra.Command) (*app, error) {
	if err := loadEnvFromFlag(cmd); err != nil {
		return nil, err
	}
	log, err := buildLogger(cmd)
	if err != nil {
		return nil, err
	}
	creds, err := loadCredentials(cmd)
	if err != nil {
		return nil, err
	}
	opts := storeOptions(cmd, log)
	return &app{
		log:      log,
		creds:    creds,
		opts:     opts,
		resolver: account.NewResolver(creds, store.NewFactory(opts), log.WithName("resolver")),
	}, nil
}

// engine builds an Engine; the catalog and archive are only loaded for the
// commands that define their flags.
func (a *app) engine(cmd *cobra.Command) (*engine.Engine, error) {
	opts := engine.Options{Logger: a.log.WithName("engine")}
	if cmd.Flags().Lookup("catalog") != nil {
		cat, err := loadCatalog(cmd)
		if err != nil {
			return nil, err
		}
		opts.Catalog = cat
	}
	if cmd.Flags().Lookup("skip-ipv6") != nil {
		opts.Checklist = checklist(cmd)
	}
	if cmd.Flags().Lookup("snapshot-dir") != nil {
		archive, err := buildArchive(cmd, a.log.WithName("snapshot"))
		if err != nil {
			return nil, err
		}
		opts.Archive = archive
	}
	return engine.New(a.resolver, opts), nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout := durationSetting(cmd, "timeout", "timeout"); timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func loadCatalog(cmd *cobra.Command) (catalog.Catalog, error) {
	if path := stringSetting(cmd, "catalog", "catalog"); path != "" {
		return catalog.Load(path, "")
	}
	return catalog.Standard(catalog.StandardOptions{
		MXHost:      stringSetting(cmd, "mx-host", "mx_host"),
		DMARCReport: stringSetting(cmd, "dmarc-rua", "dmarc_rua"),
		PagesHost:   stringSetting(cmd, "pages-host", "pages_host"),
		SkipIPv6:    boolSetting(cmd, "skip-ipv6", "skip_ipv6"),
		SkipSRV:     boolSetting(cmd, "skip-srv", "skip_srv"),
	}), nil
}

func buildArchive(cmd *cobra.Command, log logr.Logger) (snapshot.Archiver, error) {
	format := stringSetting(cmd, "snapshot-format", "snapshot.format")
	if dir := stringSetting(cmd, "snapshot-dir", "snapshot.dir"); dir != "" {
		return snapshot.DirArchive{Dir: dir, Format: format}, nil
	}
	cfg := minioConfig(cmd)
	if cfg.Endpoint == "" {
		return nil, nil
	}
	return snapshot.NewMinioArchive(cfg, log)
}

func minioConfig(cmd *cobra.Command) snapshot.MinioConfig {
	return snapshot.MinioConfig{
		Endpoint:         stringSetting(cmd, "minio-endpoint", "snapshot.endpoint"),
		AccessKey:        stringSetting(cmd, "minio-access-key", "snapshot.access_key"),
		SecretKey:        stringSetting(cmd, "minio-secret-key", "snapshot.secret_key"),
		Bucket:           stringSetting(cmd, "minio-bucket", "snapshot.bucket"),
		UseSSL:           boolSetting(cmd, "minio-ssl", "snapshot.ssl"),
		Prefix:           stringSetting(cmd, "bucket-path", "snapshot.prefix"),
		Format:           stringSetting(cmd, "snapshot-format", "snapshot.format"),
		HTTPTimeout:      durationSetting(cmd, "minio-http-timeout", "snapshot.http_timeout"),
		AutoCreateBucket: true,
	}
}

// confirm asks before a live write unless --yes was given.
func confirm(cmd *cobra.Command, message string) error {
	if mustGetBoolFlag(cmd, "yes") {
		return nil
	}
	ok := false
	prompt := &survey.Confirm{Message: message, Default: false}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return errors.New("refusing to write without confirmation (use --yes to skip the prompt)")
	}
	if !ok {
		return errors.New("aborted")
	}
	return nil
}

func outputFormat(cmd *cobra.Command) (string, error) {
	format := strings.ToLower(strings.TrimSpace(mustGetStringFlag(cmd, "format")))
	switch format {
	case "", "text":
		return "text", nil
	case "json", "yaml":
		return format, nil
	case "yml":
		return "yaml", nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want text, json or yaml)", format)
	}
}

func writeStructured(w io.Writer, v any, format string) error {
	var (
		data []byte
		err  error
	)
	if format == "yaml" {
		data, err = yaml.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = w.Write(data)
	return err
}
