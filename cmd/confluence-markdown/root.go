/*
Copyright © 2024 paul <paul@denknerd.org>
*/

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/structs"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/toothbrush/confluence-markdown/confluence"
	"github.com/toothbrush/confluence-markdown/internal/termfmt"
	"github.com/toothbrush/confluence-markdown/publish"
	"gopkg.in/dnaeon/go-vcr.v3/cassette"
	"gopkg.in/dnaeon/go-vcr.v3/recorder"
	"gopkg.in/yaml.v2"
)

const (
	configEnv     = "CONFLUENCE_MARKDOWN_CONFIG"
	defaultConfig = "~/.config/confluence-markdown.yaml"

	baseURLEnv = "CMT_CONF_BASE_URL"
	emailEnv   = "CMT_CONF_EMAIL"
	tokenEnv   = "CMT_CONF_TOKEN"
	spaceEnv   = "CMT_CONF_SPACE"
	parentEnv  = "CMT_CONF_PARENT_ID"

	cassetteName = "fixtures/confluence-markdown"
)

var (
	// Store the result of binding cobra flags
	Config    string
	Debug     bool
	LogFormat string

	// Command to run to retrieve API token, when CMT_CONF_TOKEN isn't set
	AuthTokenCmd []string

	BaseURL    string
	Email      string
	MaxRetries int
	Timeout    time.Duration
	WithVCR    bool

	// Resolved config file, and whether it was actually read
	ConfigActual string
	ConfigLoaded bool

	ParsedConfig YamlConfig
)

var rootUsage = strings.TrimSpace(`
Publish Markdown files from a repository to Confluence.  Each file maps to one page, either by page
ID or by space and title; pages are created when missing and updated otherwise, always checking
that nobody else changed the page in between.

Credentials come from flags, the config file or the environment (CMT_CONF_BASE_URL,
CMT_CONF_EMAIL, CMT_CONF_TOKEN).
`)

// newRootCmd builds the command tree.  Building it afresh resets every flag to its default.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "confluence-markdown",
		Short:         "Publish Markdown documents to Confluence",
		Long:          rootUsage,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeConfig(cmd); err != nil {
				return fmt.Errorf("%w: couldn't initialise config: %v", publish.ErrConfig, err)
			}
			return nil
		},
	}

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", publish.ErrConfig, err)
	})

	// Define cobra flags, the default value has the lowest (least significant) precedence
	rootCmd.PersistentFlags().StringVar(&Config, "config", "", fmt.Sprintf("config file location (default: %s, respects %s)", defaultConfig, configEnv))
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "display debug output")
	rootCmd.PersistentFlags().StringVar(&LogFormat, "log-format", "text", "log output format: text or json")
	rootCmd.PersistentFlags().StringSliceVar(&AuthTokenCmd, "auth-token-cmd", []string{}, "shell command to retrieve the Atlassian API token, if "+tokenEnv+" isn't set")
	rootCmd.PersistentFlags().StringVar(&BaseURL, "base-url", "", "wiki base URL, e.g. https://ORG.atlassian.net/wiki, or just ORG (respects "+baseURLEnv+")")
	rootCmd.PersistentFlags().StringVar(&Email, "email", "", "your Atlassian account email; without it the token is sent as a bearer token (respects "+emailEnv+")")
	rootCmd.PersistentFlags().IntVar(&MaxRetries, "max-retries", confluence.DefaultRetryPolicy().MaxRetries, "retries for rate-limited, failed or unreachable requests")
	rootCmd.PersistentFlags().DurationVar(&Timeout, "timeout", 30*time.Second, "timeout for each HTTP request")
	rootCmd.PersistentFlags().BoolVar(&WithVCR, "with-vcr", false, "use go-vcr to record and replay responses in "+cassetteName+".yaml")

	rootCmd.AddCommand(
		newPushCmd(),
		newConvertCmd(),
		newMapCmd(),
		newListCmd(),
		newWhoamiCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func initializeConfig(cmd *cobra.Command) error {
	explicit := true
	path := Config
	if path == "" {
		// Did the user provide an ENV?
		if envConfig := os.Getenv(configEnv); envConfig != "" {
			path = envConfig
		} else {
			// As fallback, look in the home XDG-ish directory
			path = defaultConfig
			explicit = false
		}
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("unable to expand homedir: %w", err)
	}
	ConfigActual = path
	ConfigLoaded = false
	ParsedConfig = YamlConfig{}

	yamlFile, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// no config is fine, flags and environment may be enough
	case err != nil:
		return fmt.Errorf("error reading config file %s: %w", path, err)
	default:
		// bark if a user sets a key we don't recognise
		if err := yaml.UnmarshalStrict(yamlFile, &ParsedConfig); err != nil {
			return fmt.Errorf("issue parsing config file %s: %w", path, err)
		}
		ConfigLoaded = true
	}

	// environment beats the config file, flags beat both
	if err := bindEnv(cmd); err != nil {
		return fmt.Errorf("failed to bind environment: %w", err)
	}
	if err := bindFlags(cmd, ParsedConfig); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	return nil
}

type YamlConfig struct {
	Debug         *bool `yaml:"debug"`
	DryRun        *bool `yaml:"dry-run"`
	RecordMapping *bool `yaml:"record-mapping"`
	Progress      *bool `yaml:"progress"`
	WithVCR       *bool `yaml:"with-vcr"`

	Workers    *int `yaml:"workers"`
	MaxRetries *int `yaml:"max-retries"`

	BaseURL   string `yaml:"base-url"`
	Email     string `yaml:"email"`
	Space     string `yaml:"space"`
	ParentID  string `yaml:"parent-id"`
	Root      string `yaml:"root"`
	LogFormat string `yaml:"log-format"`
	Timeout   string `yaml:"timeout"`

	AuthTokenCmd []string `yaml:"auth-token-cmd"`
	Labels       []string `yaml:"labels"`
	Include      []string `yaml:"include"`
	Exclude      []string `yaml:"exclude"`
}

// envFlags are the flags the original environment variables stand in for.
var envFlags = map[string]string{
	"base-url":  baseURLEnv,
	"email":     emailEnv,
	"space":     spaceEnv,
	"parent-id": parentEnv,
}

func bindEnv(cmd *cobra.Command) error {
	for key, env := range envFlags {
		value := strings.TrimSpace(os.Getenv(env))
		if value == "" || cmd.Flag(key) == nil || cmd.Flags().Changed(key) {
			continue
		}
		if err := cmd.Flags().Set(key, value); err != nil {
			return fmt.Errorf("couldn't apply %s: %w", env, err)
		}
	}
	return nil
}

// Bind each cobra flag the user didn't set to its value in the config file.
func bindFlags(cmd *cobra.Command, v YamlConfig) error {
	for _, field := range structs.Fields(v) {
		key := field.Tag("yaml")
		if key == "" {
			return fmt.Errorf("could not retrieve struct tag 'yaml'")
		}
		if flag := cmd.Flag(key); flag == nil {
			// the flag is unknown.  but that can legitimately happen if you're running e.g.
			// `list spaces`, which has no `workers` flag, while your YAML file sets it.
			continue
		}
		if cmd.Flags().Changed(key) {
			continue
		}

		var values []string
		switch field.Kind() {
		case reflect.Ptr:
			switch p := field.Value().(type) {
			case *bool:
				if p != nil {
					values = append(values, strconv.FormatBool(*p))
				}
			case *int:
				if p != nil {
					values = append(values, strconv.Itoa(*p))
				}
			default:
				return fmt.Errorf("found unrecognised field: %s", field.Name())
			}

		case reflect.String:
			if s := field.Value().(string); s != "" {
				values = append(values, s)
			}

		case reflect.Slice:
			ss, ok := field.Value().([]string)
			if !ok {
				return fmt.Errorf("found unrecognised field: %s", field.Name())
			}
			// repeatedly calling Set() appends to the slice
			values = append(values, ss...)

		default:
			return fmt.Errorf("found unrecognised field: %s", field.Name())
		}

		for _, value := range values {
			if err := cmd.Flags().Set(key, value); err != nil {
				return fmt.Errorf("config key %s: %w", key, err)
			}
		}
	}

	return nil
}

// connection is what every remote command needs before its first request.
type connection struct {
	BaseURL    string
	Token      string
	MaxRetries int
	Timeout    time.Duration
	LogFormat  string
}

func (c connection) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL,
			validation.Required.Error("is required: use --base-url, the config file or "+baseURLEnv),
			// a bare ORG is fine too
			validation.When(strings.Contains(c.BaseURL, "://"), is.URL)),
		validation.Field(&c.Token,
			validation.Required.Error("is required: set "+tokenEnv+" or --auth-token-cmd")),
		validation.Field(&c.MaxRetries, validation.Min(0), validation.Max(10)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.LogFormat, validation.In("text", "json")),
	)
}

func authToken() (string, error) {
	if token := strings.TrimSpace(os.Getenv(tokenEnv)); token != "" {
		return token, nil
	}
	if len(AuthTokenCmd) < 1 {
		return "", nil
	}

	tokenCmdOutput, err := exec.Command(AuthTokenCmd[0], AuthTokenCmd[1:]...).Output()
	if err != nil {
		return "", fmt.Errorf("%w: couldn't execute auth-token-cmd '%v': %v", publish.ErrConfig, AuthTokenCmd, err)
	}
	return strings.TrimSpace(strings.Split(string(tokenCmdOutput), "\n")[0]), nil
}

// newAPI builds the client from the resolved flags.  The returned stop function must be called
// once the client is no longer used; it flushes VCR recordings.
func newAPI(logger *slog.Logger) (*confluence.API, func(), error) {
	token, err := authToken()
	if err != nil {
		return nil, nil, err
	}

	conn := connection{
		BaseURL:    strings.TrimSpace(BaseURL),
		Token:      token,
		MaxRetries: MaxRetries,
		Timeout:    Timeout,
		LogFormat:  LogFormat,
	}
	if err := conn.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", publish.ErrConfig, err)
	}

	retry := confluence.DefaultRetryPolicy()
	retry.MaxRetries = conn.MaxRetries

	api, err := confluence.NewAPI(conn.BaseURL, strings.TrimSpace(Email), conn.Token,
		confluence.WithLogger(logger),
		confluence.WithRetryPolicy(retry),
		confluence.WithTimeout(conn.Timeout))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", publish.ErrConfig, err)
	}

	stop := func() {}
	if WithVCR {
		r, err := newRecorder()
		if err != nil {
			return nil, nil, err
		}
		client := r.GetDefaultClient()
		client.Timeout = conn.Timeout
		api.Client = client
		stop = func() {
			if err := r.Stop(); err != nil {
				logger.Warn("couldn't save VCR cassette", slog.String("error", err.Error()))
			}
		}
	}

	return api, stop, nil
}

func newRecorder() (*recorder.Recorder, error) {
	opts := &recorder.Options{
		CassetteName:       cassetteName,
		Mode:               recorder.ModeReplayWithNewEpisodes,
		SkipRequestLatency: true,
		RealTransport:      http.DefaultTransport,
	}
	r, err := recorder.NewWithOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("couldn't set up go-vcr recording: %w", err)
	}

	// Add a hook which removes Authorization headers from all requests
	hook := func(i *cassette.Interaction) error {
		delete(i.Request.Headers, "Authorization")
		return nil
	}
	r.AddHook(hook, recorder.AfterCaptureHook)
	r.SetReplayableInteractions(true)

	return r, nil
}

// newLogger writes structured logs to w: info and up, or debug with --debug.
func newLogger(w io.Writer) (*slog.Logger, error) {
	level := slog.LevelInfo
	if Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	switch LogFormat {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("%w: unknown --log-format %q, want text or json", publish.ErrConfig, LogFormat)
	}
}

// configArgs marks argument-count mistakes as configuration errors.
func configArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", publish.ErrConfig, err)
		}
		return nil
	}
}

// run executes the CLI with args, writing to the given streams.
func run(args []string, stdout, stderr io.Writer) error {
	termfmt.SetEnabled(colorOutput(stdout))

	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.Execute()
}

// colorOutput reports whether w is a terminal that wants colour.
func colorOutput(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || os.Getenv("NO_COLOR") != "" {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// Execute runs the CLI against the process's arguments and streams.
func Execute() error {
	return run(os.Args[1:], os.Stdout, os.Stderr)
}
