package main

/**
Reference backend for ranged uploads
*/

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/forceu/rangeupload/internal/configuration/cloudconfig"
	"github.com/forceu/rangeupload/internal/configuration/database"
	"github.com/forceu/rangeupload/internal/configuration/database/migration"
	"github.com/forceu/rangeupload/internal/environment"
	"github.com/forceu/rangeupload/internal/logging"
	"github.com/forceu/rangeupload/internal/logging/serverstats"
	"github.com/forceu/rangeupload/internal/storage/filesystem"
	"github.com/forceu/rangeupload/internal/webserver"
	"github.com/forceu/rangeupload/internal/webserver/ssl"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var osExit = os.Exit

// serverFlags are applied on top of the env variables, if they have been passed
type serverFlags struct {
	port          int
	dataDir       string
	database      string
	authToken     string
	maxIngestKBps int
	useSsl        bool
	regenerateSsl bool
	showVersion   bool
}

// Main routine that is called on startup
func main() {
	err := newRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR: "+err.Error())
		osExit(1)
	}
}

func newRootCommand() *cobra.Command {
	var flags serverFlags
	root := &cobra.Command{
		Use:           "rangeserver",
		Short:         "Receives ranged uploads and assembles the files",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.showVersion {
				showVersion()
				return nil
			}
			env := environment.New()
			applyFlags(&env, flags, cmd)
			if env.UseSsl {
				err := ssl.GenerateIfInvalidCert(env.ConfigDir, env.SslHost, flags.regenerateSsl)
				if err != nil {
					return fmt.Errorf("could not create SSL certificate: %w", err)
				}
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, env)
		},
	}
	root.Flags().IntVarP(&flags.port, "port", "p", environment.DefaultPort, "Port the webserver listens on")
	root.Flags().StringVar(&flags.dataDir, "data-dir", "", "Directory for partial and completed uploads")
	root.Flags().StringVar(&flags.database, "database", "", "Database url, e.g. sqlite://data/rangeupload.sqlite or redis://host:port")
	root.Flags().StringVar(&flags.authToken, "auth-token", "", "Bearer token clients have to send, empty disables authentication")
	root.Flags().IntVar(&flags.maxIngestKBps, "max-ingest-kbps", 0, "Limits the combined upload speed, 0 for unlimited")
	root.Flags().BoolVar(&flags.useSsl, "use-ssl", false, "Serve HTTPS with a self-signed certificate")
	root.Flags().BoolVar(&flags.regenerateSsl, "create-ssl", false, "Create a new SSL certificate, even if the current one is still valid")
	root.Flags().BoolVarP(&flags.showVersion, "version", "v", false, "Show version info")

	var migrationFlags migration.Flags
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Copies all upload sessions from one database to another",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			migration.Do(migrationFlags)
		},
	}
	migrate.Flags().StringVar(&migrationFlags.Source, "source", "", "Url of the database to read from")
	migrate.Flags().StringVar(&migrationFlags.Destination, "destination", "", "Url of the database to write to")
	_ = migrate.MarkFlagRequired("source")
	_ = migrate.MarkFlagRequired("destination")
	root.AddCommand(migrate)
	return root
}

// applyFlags overwrites env variables with the flags that were set explicitly
func applyFlags(env *environment.Environment, flags serverFlags, cmd *cobra.Command) {
	changed := cmd.Flags().Changed
	if changed("port") {
		env.WebserverPort = flags.port
	}
	if changed("data-dir") {
		env.DataDir = flags.dataDir
	}
	if changed("database") {
		env.DatabaseUrl = flags.database
	}
	if changed("auth-token") {
		env.AuthToken = flags.authToken
	}
	if changed("max-ingest-kbps") && flags.maxIngestKBps >= 0 {
		env.MaxIngestKBps = flags.maxIngestKBps
	}
	if changed("use-ssl") || flags.regenerateSsl {
		env.UseSsl = flags.useSsl || flags.regenerateSsl
	}
}

// runServer starts the backend and blocks until ctx is cancelled or the webserver fails
func runServer(ctx context.Context, env environment.Environment) error {
	fmt.Println("rangeserver " + environment.VersionString() + " starting")
	err := logging.Init(env.ConfigDir)
	if err != nil {
		return fmt.Errorf("could not create log file: %w", err)
	}
	defer logging.Close()
	serverstats.Init(env.DataDir)

	db, err := database.Connect(env.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("could not connect to database: %w", err)
	}
	defer db.Close()

	filesystem.Init(env.DataDir + "/files")
	initCloudConfig(env)

	config := webserver.Config{
		Port:          env.WebserverPort,
		DataDir:       env.DataDir,
		AuthToken:     env.AuthToken,
		MaxIngestKBps: env.MaxIngestKBps,
		SessionExpiry: env.SessionExpiry(),
		Database:      db,
		Storage:       filesystem.ActiveStorageSystem,
	}
	if env.UseSsl {
		config.CertFile, config.KeyFile = ssl.GetCertificateLocations(env.ConfigDir)
	}
	server, err := webserver.New(config)
	if err != nil {
		return err
	}
	if env.AuthToken == "" {
		fmt.Println("Warning: no auth token set, every client is allowed to upload")
	}

	result := make(chan error, 1)
	go func() {
		result <- server.Start()
	}()
	select {
	case err = <-result:
		return err
	case <-ctx.Done():
	}
	fmt.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	if err != nil {
		return err
	}
	return <-result
}

func initCloudConfig(env environment.Environment) {
	cConfig, ok := cloudconfig.Load(env)
	if !ok {
		fmt.Println("Saving new files to local storage")
		return
	}
	err := filesystem.SetAws(cConfig.Aws)
	if err != nil {
		fmt.Println("Warning: " + err.Error() + ", saving new files to local storage")
		return
	}
	fmt.Println("Saving new files to cloud storage")
}

func showVersion() {
	fmt.Println("rangeserver " + environment.Version)
	fmt.Println()
	fmt.Println("Build Date: " + environment.BuildTime)
	fmt.Println("Docker Version: " + environment.IsDocker)
	info, ok := debug.ReadBuildInfo()
	if ok {
		fmt.Println("Go Version: " + info.GoVersion)
		parseBuildSettings(info.Settings)
	} else {
		fmt.Println("Go Version: unknown")
	}
}

func parseBuildSettings(infos []debug.BuildSetting) {
	lookups := []struct {
		key   string
		label string
	}{
		{"vcs.revision", "Git Commit"},
		{"vcs.time", "Git Commit Timestamp"},
		{"GOARCH", "Architecture"},
		{"GOOS", "Operating System"},
	}
	for _, lookup := range lookups {
		result := "Not found"
		for _, buildSetting := range infos {
			if buildSetting.Key == lookup.key {
				result = buildSetting.Value
				break
			}
		}
		fmt.Println(lookup.label + ": " + result)
	}
	for _, info := range infos {
		if info.Key == "vcs.modified" {
			if info.Value == "true" {
				fmt.Println("Code has been modified after last git commit")
			}
			break
		}
	}
}
