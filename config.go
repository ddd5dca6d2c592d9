package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/sketchduel/games/sketch"
	"github.com/Seednode/sketchduel/games/sketch/similarity"
)

type Config struct {
	allowOrigin    string
	bind           string
	fetchTimeout   time.Duration
	images         []string
	maxImageBytes  int64
	otelEndpoint   string
	port           int
	prefix         string
	profile        bool
	roundDuration  time.Duration
	scoreTimeout   time.Duration
	sessionTimeout time.Duration
	shareURL       string
	submitGrace    time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.roundDuration <= 0 {
		return fmt.Errorf("invalid round duration (must be positive): %s", c.roundDuration)
	}
	if c.submitGrace < 0 {
		return fmt.Errorf("invalid submit grace (must not be negative): %s", c.submitGrace)
	}
	if c.scoreTimeout <= 0 {
		return fmt.Errorf("invalid score timeout (must be positive): %s", c.scoreTimeout)
	}
	if c.fetchTimeout <= 0 {
		return fmt.Errorf("invalid fetch timeout (must be positive): %s", c.fetchTimeout)
	}
	if c.maxImageBytes <= 0 {
		return fmt.Errorf("invalid max image size (must be positive): %d", c.maxImageBytes)
	}

	hasImage := false
	for _, img := range c.images {
		if strings.TrimSpace(img) != "" {
			hasImage = true
			break
		}
	}
	if !hasImage {
		return errors.New("at least one reference image must be provided via --images")
	}

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) settings() sketch.Settings {
	return sketch.Settings{
		RoundDuration: c.roundDuration,
		SubmitGrace:   c.submitGrace,
		ScoreTimeout:  c.scoreTimeout,
		Logf: func(format string, args ...any) {
			logf(c, format, args...)
		},
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SKETCHDUEL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "sketchduel",
		Short:         "A two-player drawing duel, scored by visual similarity.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.allowOrigin, "allow-origin", "", "origin allowed to call the API and open websockets, or * for any (env: SKETCHDUEL_ALLOW_ORIGIN)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: SKETCHDUEL_BIND)")
	fs.DurationVar(&cfg.fetchTimeout, "fetch-timeout", similarity.DefaultFetchTimeout, "timeout for fetching a reference image (env: SKETCHDUEL_FETCH_TIMEOUT)")
	fs.StringSliceVar(&cfg.images, "images", sketch.DefaultImages, "comma-separated reference image URLs (env: SKETCHDUEL_IMAGES)")
	fs.Int64Var(&cfg.maxImageBytes, "max-image-bytes", similarity.DefaultMaxBytes, "largest reference image to download, in bytes (env: SKETCHDUEL_MAX_IMAGE_BYTES)")
	fs.StringVar(&cfg.otelEndpoint, "otel-endpoint", "", "OTLP/HTTP endpoint for traces; empty disables tracing (env: SKETCHDUEL_OTEL_ENDPOINT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: SKETCHDUEL_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: SKETCHDUEL_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: SKETCHDUEL_PROFILE)")
	fs.DurationVar(&cfg.roundDuration, "round-duration", sketch.DefaultRoundDuration, "time players have to draw each round (env: SKETCHDUEL_ROUND_DURATION)")
	fs.DurationVar(&cfg.scoreTimeout, "score-timeout", sketch.DefaultScoreTimeout, "time allowed for scoring a round before falling back (env: SKETCHDUEL_SCORE_TIMEOUT)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle game sessions are ended (env: SKETCHDUEL_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.shareURL, "share-url", "", "base URL of the web client, used in share QR codes (env: SKETCHDUEL_SHARE_URL)")
	fs.DurationVar(&cfg.submitGrace, "submit-grace", sketch.DefaultSubmitGrace, "time after the timer runs out during which late drawings are accepted (env: SKETCHDUEL_SUBMIT_GRACE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: SKETCHDUEL_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: SKETCHDUEL_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: SKETCHDUEL_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: SKETCHDUEL_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, v.GetString(f.Name))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("sketchduel v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
