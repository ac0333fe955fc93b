// Package main provides the entry point for the Spotify auth service. The
// binary drives the interactive OAuth PKCE login flow from the command line
// and, in serve mode, exposes the session operations to the desktop UI shell
// over a loopback management API.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/spotify-rework/spotify-rework/internal/api"
	"github.com/spotify-rework/spotify-rework/internal/auth/spotify"
	"github.com/spotify-rework/spotify-rework/internal/buildinfo"
	"github.com/spotify-rework/spotify-rework/internal/config"
	"github.com/spotify-rework/spotify-rework/internal/logging"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	fmt.Printf("Spotify Rework Auth Version: %s, Commit: %s, BuiltAt: %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	var login bool
	var noBrowser bool
	var logout bool
	var status bool
	var printToken bool
	var authURLOnly bool
	var configPath string

	flag.BoolVar(&login, "login", false, "Run the interactive OAuth login flow")
	flag.BoolVar(&noBrowser, "no-browser", false, "Do not open a browser; print the authorization URL instead")
	flag.BoolVar(&logout, "logout", false, "Delete the stored credential and exit")
	flag.BoolVar(&status, "status", false, "Print whether a credential exists and exit")
	flag.BoolVar(&printToken, "print-token", false, "Print a valid access token and exit")
	flag.BoolVar(&authURLOnly, "auth-url", false, "Print the authorization URL and exit")
	flag.StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	// A local .env complements the process environment; missing is fine.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Debugf("skipped .env loading: %v", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if cfg.LoggingToFile {
		logDir := cfg.DataDir
		if logDir == "" {
			if logDir, err = spotify.DefaultDir(); err != nil {
				log.Fatalf("failed to resolve data directory: %v", err)
			}
		}
		if err = logging.EnableFileLogging(filepath.Join(logDir, "logs")); err != nil {
			log.Warnf("file logging disabled: %v", err)
		}
	}

	cipher, err := spotify.NewCipher()
	if err != nil {
		log.Fatalf("failed to initialize credential encryption: %v", err)
	}

	store := spotify.NewStore(cfg.DataDir, cipher)
	manager := spotify.NewManager(cfg, spotify.NewSpotifyAuth(cfg), store)

	switch {
	case login:
		doLogin(manager, noBrowser)
	case logout:
		doLogout(manager)
	case status:
		doStatus(manager)
	case printToken:
		doPrintToken(manager)
	case authURLOnly:
		doAuthURL(manager)
	default:
		log.Infof("management API listening on %s", cfg.ManagementAddr)
		if err = api.Serve(cfg.ManagementAddr, manager); err != nil {
			log.Fatalf("management API failed: %v", err)
		}
	}
}

// doLogin runs the full browser flow with a stdin fallback for pasting the
// callback URL manually.
func doLogin(manager *spotify.Manager, noBrowser bool) {
	reader := bufio.NewReader(os.Stdin)
	opts := &spotify.RunFlowOptions{
		NoBrowser: noBrowser,
		Prompt: func(message string) (string, error) {
			fmt.Print(message)
			line, err := reader.ReadString('\n')
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(line), nil
		},
	}

	session, err := manager.RunFlow(context.Background(), opts)
	if err != nil {
		log.Error(spotify.GetUserFriendlyMessage(err))
		fmt.Printf("Authentication failed: %v\n", err)
		os.Exit(1)
	}

	name := session.User.DisplayName
	if name == "" {
		name = session.User.ID
	}
	fmt.Printf("Authentication successful! Logged in as %s\n", name)
	if session.IsPremium {
		fmt.Println("Premium account detected; playback features are available.")
	}
}

func doLogout(manager *spotify.Manager) {
	if err := manager.Logout(); err != nil {
		fmt.Printf("Logout failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Logged out.")
}

func doStatus(manager *spotify.Manager) {
	if manager.IsAuthenticated() {
		fmt.Println("Authenticated: a stored credential exists.")
		return
	}
	fmt.Println("Not authenticated.")
}

func doPrintToken(manager *spotify.Manager) {
	token, err := manager.AccessToken(context.Background())
	if err != nil {
		fmt.Printf("Could not obtain access token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func doAuthURL(manager *spotify.Manager) {
	authURL, err := manager.BuildAuthURL()
	if err != nil {
		fmt.Printf("Could not build authorization URL: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(authURL)
}
