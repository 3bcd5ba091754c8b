package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	tea "charm.land/bubbletea/v2"

	"github.com/devlogin/msa-cli/msa"
	"github.com/devlogin/msa-cli/tui"
)

var (
	clientID    string
	tokenFile   string
	mimicPlayer string
	proxyHost   string
	proxyUser   string
	proxyPass   string

	flagClientID    *string
	flagTokenFile   *string
	flagMimicPlayer *string
	flagProxyHost   *string
	flagProxyPort   *int
	flagProxyUser   *string
	flagProxyPass   *string
	flagKeyring     *bool
	flagNoStore     *bool
	flagHeadless    *bool
	flagDebug       *bool

	configInitialized bool
)

func init() {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	// Define flags (but don't parse yet to avoid conflicts with test flags)
	flagClientID = flag.String(
		"client-id",
		"",
		"Azure application client ID (default: built-in or DEVLOGIN_CLIENT_ID env)",
	)
	flagTokenFile = flag.String(
		"token-file",
		"",
		"Credential cache file (default: DevLoginCache.json or DEVLOGIN_TOKEN_FILE env)",
	)
	flagMimicPlayer = flag.String(
		"mimic",
		"",
		"Mimic the given player (username or UUID) instead of logging in",
	)
	flagProxyHost = flag.String("proxy-host", "", "SOCKS proxy host (optional)")
	flagProxyPort = flag.Int("proxy-port", 8080, "SOCKS proxy port")
	flagProxyUser = flag.String("proxy-user", "", "SOCKS proxy username")
	flagProxyPass = flag.String("proxy-pass", "", "SOCKS proxy password")
	flagKeyring = flag.Bool("keyring", false, "Cache the credential in the OS keyring instead of a file")
	flagNoStore = flag.Bool("no-store", false, "Do not persist the refresh token")
	flagHeadless = flag.Bool("headless", false, "Plain text output even on a terminal")
	flagDebug = flag.Bool("debug", false, "Verbose logging")
}

// initConfig parses flags and initializes configuration
// Separated from init() to avoid conflicts with test flag parsing
func initConfig() {
	if configInitialized {
		return
	}
	configInitialized = true

	flag.Parse()

	// Priority: flag > env > default
	clientID = getConfig(*flagClientID, "DEVLOGIN_CLIENT_ID", msa.DefaultClientID)
	tokenFile = getConfig(*flagTokenFile, "DEVLOGIN_TOKEN_FILE", msa.DefaultCacheFile)
	mimicPlayer = getConfig(*flagMimicPlayer, "DEVLOGIN_MIMIC", "")
	proxyHost = getConfig(*flagProxyHost, "DEVLOGIN_PROXY_HOST", "")
	proxyUser = getConfig(*flagProxyUser, "DEVLOGIN_PROXY_USER", "")
	proxyPass = getConfig(*flagProxyPass, "DEVLOGIN_PROXY_PASS", "")
}

// getConfig returns value with priority: flag > env > default
func getConfig(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return getEnv(envKey, defaultValue)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// buildProxyURL assembles the SOCKS proxy URL from the proxy flags, or nil
// for a direct connection.
func buildProxyURL() *url.URL {
	if proxyHost == "" {
		return nil
	}
	u := &url.URL{
		Scheme: "socks5",
		Host:   net.JoinHostPort(proxyHost, strconv.Itoa(*flagProxyPort)),
	}
	if proxyUser != "" {
		if proxyPass != "" {
			u.User = url.UserPassword(proxyUser, proxyPass)
		} else {
			u.User = url.User(proxyUser)
		}
	}
	return u
}

func setupLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	// The TUI owns stderr's screen; keep log output on stderr but quiet
	// unless debugging, and without stack traces cluttering warnings.
	cfg.DisableStacktrace = true
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// isTTY reports whether stderr is a character device (interactive terminal).
// We check stderr because the TUI renders to stderr, allowing stdout to be
// piped into a launcher.
func isTTY() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func main() {
	initConfig()

	log := setupLogger(*flagDebug)
	defer func() { _ = log.Sync() }()

	if isTTY() && !*flagHeadless {
		// Run the TUI on stderr so stdout pipes are not corrupted. Keyboard
		// input stays enabled: esc dismisses the device-code prompt, which
		// is how cancellation reaches the flow.
		m := tui.NewModel()
		p := tea.NewProgram(m, tea.WithOutput(os.Stderr))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			}
		}()

		sink := tui.NewProgramSink(p)
		profile, runErr := run(sink, log)
		if runErr != nil {
			p.Send(tui.MsgFatal{Err: runErr})
		} else {
			p.Send(tui.MsgDone{Name: profile.Name, UUID: profile.UUID.String()})
		}
		p.Quit() // let BubbleTea drain terminal query responses before exiting
		wg.Wait()
		if runErr != nil {
			os.Exit(1)
		}
		emitLaunchArgs(profile)
	} else {
		sink := tui.NewPlainSink(os.Stderr)
		profile, err := run(sink, log)
		if err != nil {
			os.Exit(1)
		}
		emitLaunchArgs(profile)
	}
}

// emitLaunchArgs writes the session arguments to stdout for a wrapping
// launcher to splice into the game's command line.
func emitLaunchArgs(profile msa.Profile) {
	fmt.Println(strings.Join(profile.LaunchArgs(), " "))
}

func run(sink tui.Sink, log *zap.Logger) (msa.Profile, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exec, err := msa.NewExecutor(buildProxyURL())
	if err != nil {
		log.Error("could not set up HTTP client", zap.Error(err))
		return msa.Profile{}, err
	}

	if mimicPlayer != "" {
		return msa.Mimic(ctx, exec, msa.DefaultEndpoints(), log, mimicPlayer)
	}

	var store msa.TokenStore
	if *flagKeyring {
		store = msa.NewKeyringStore("devlogin")
	} else {
		store = &msa.FileStore{Path: tokenFile}
	}

	flow, err := msa.NewFlow(msa.Options{
		ClientID:          clientID,
		Executor:          exec,
		Store:             store,
		StoreRefreshToken: !*flagNoStore,
		Sink:              sink,
		Logger:            log,
	})
	if err != nil {
		log.Error("could not set up login flow", zap.Error(err))
		return msa.Profile{}, err
	}

	return flow.Login(ctx)
}
