package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	adminID         string
	bind            string
	credentialsFile string
	discordToken    string
	httpTimeout     time.Duration
	pickerTimeout   time.Duration
	port            int
	profile         bool
	sheetName       string
	spreadsheetID   string
	steamAPIKey     string
	storeCooldown   time.Duration
	verbose         bool
	version         bool
}

func (c *Config) validate() error {
	if c.discordToken == "" {
		return errors.New("--discord-token is required")
	}
	if c.steamAPIKey == "" {
		return errors.New("--steam-api-key is required")
	}
	if c.spreadsheetID == "" {
		return errors.New("--spreadsheet-id is required")
	}
	if c.credentialsFile == "" {
		return errors.New("--credentials-file is required")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.storeCooldown < 0 {
		return fmt.Errorf("invalid store cooldown: %s", c.storeCooldown)
	}
	return nil
}

func (c *Config) adminMention() string {
	if c.adminID == "" {
		return "the server admin"
	}
	return "<@" + c.adminID + ">"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("GAMENIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "gamenight",
		Short:         "A Discord bot that finds common multiplayer Steam games among friends.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return RunBot(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.adminID, "admin-id", "", "discord user id mentioned in failure messages (env: GAMENIGHT_ADMIN_ID)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address the diagnostics server binds to (env: GAMENIGHT_BIND)")
	fs.StringVar(&cfg.credentialsFile, "credentials-file", "", "path to google service account credentials (env: GAMENIGHT_CREDENTIALS_FILE)")
	fs.StringVar(&cfg.discordToken, "discord-token", "", "discord bot token (env: GAMENIGHT_DISCORD_TOKEN)")
	fs.DurationVar(&cfg.httpTimeout, "http-timeout", 10*time.Second, "timeout for outbound http calls (env: GAMENIGHT_HTTP_TIMEOUT)")
	fs.DurationVar(&cfg.pickerTimeout, "picker-timeout", 5*time.Minute, "time before idle game pickers are disabled (env: GAMENIGHT_PICKER_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port the diagnostics server listens on (env: GAMENIGHT_PORT)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: GAMENIGHT_PROFILE)")
	fs.StringVar(&cfg.sheetName, "sheet-name", "Members", "worksheet tab holding member records (env: GAMENIGHT_SHEET_NAME)")
	fs.StringVar(&cfg.spreadsheetID, "spreadsheet-id", "", "google sheet document key (env: GAMENIGHT_SPREADSHEET_ID)")
	fs.StringVar(&cfg.steamAPIKey, "steam-api-key", "", "steam web api key (env: GAMENIGHT_STEAM_API_KEY)")
	fs.DurationVar(&cfg.storeCooldown, "store-cooldown", 250*time.Millisecond, "minimum spacing between steam store calls (env: GAMENIGHT_STORE_COOLDOWN)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: GAMENIGHT_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: GAMENIGHT_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("gamenight v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
