package cliflags

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/forceu/rangeupload/cmd/rangeupload/cliconstants"
	"github.com/forceu/rangeupload/internal/environment"
	"github.com/spf13/cobra"
)

// UploadConfig contains the parameters of the upload command
type UploadConfig struct {
	ConfigFile  string
	Files       []string
	Description string
	JsonOutput  bool
	ChunkSize   int64
	MaxRetries  int
	StatusAddr  string
}

// PlanConfig contains the parameters of the plan command
type PlanConfig struct {
	Files      []string
	ChunkSize  int64
	JsonOutput bool
}

// Actions are called by the commands after the flags have been parsed
type Actions struct {
	Login   func(configFile string) error
	Logout  func(configFile string) error
	Upload  func(config UploadConfig) error
	Plan    func(config PlanConfig) error
	Version func()
}

var dockerUploadFolder = cliconstants.DockerFolderUpload

// NewRootCommand returns the command tree of the cli
func NewRootCommand(actions Actions) *cobra.Command {
	var configFile string
	root := &cobra.Command{
		Use:           "rangeupload",
		Short:         "Resumable chunked uploads with HTTP Content-Range requests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to the login file")

	root.AddCommand(&cobra.Command{
		Use:   "login",
		Short: "Save the server url and credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return actions.Login(GetConfigLocation(configFile))
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "logout",
		Short: "Delete the saved login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return actions.Logout(GetConfigLocation(configFile))
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			actions.Version()
		},
	})
	root.AddCommand(newUploadCommand(actions, &configFile))
	root.AddCommand(newPlanCommand(actions))
	return root
}

func newUploadCommand(actions Actions, configFile *string) *cobra.Command {
	var config UploadConfig
	cmd := &cobra.Command{
		Use:   "upload [file...]",
		Short: "Upload one or more files",
		RunE: func(cmd *cobra.Command, args []string) error {
			config.ConfigFile = GetConfigLocation(*configFile)
			files, err := getFiles(config.Files, args)
			if err != nil {
				return err
			}
			config.Files = files
			return actions.Upload(config)
		},
	}
	cmd.Flags().StringArrayVarP(&config.Files, "file", "f", nil, "File to upload, can be repeated")
	cmd.Flags().StringVarP(&config.Description, "description", "d", "", "Description sent with every chunk, overrides the saved default")
	cmd.Flags().BoolVar(&config.JsonOutput, "json", false, "Outputs the result as JSON only")
	cmd.Flags().Int64Var(&config.ChunkSize, "chunk-size", 0, "Chunk size in bytes, overrides RANGEUPLOAD_CHUNK_SIZE")
	cmd.Flags().IntVar(&config.MaxRetries, "max-retries", -1, "Retries per chunk, overrides RANGEUPLOAD_MAX_RETRIES")
	cmd.Flags().StringVar(&config.StatusAddr, "status-addr", "", "Serve upload events as server-sent events on this address, e.g. 127.0.0.1:8090")
	return cmd
}

func newPlanCommand(actions Actions) *cobra.Command {
	var config PlanConfig
	cmd := &cobra.Command{
		Use:   "plan [file...]",
		Short: "Print the ranges a file would be sent in",
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := getFiles(config.Files, args)
			if err != nil {
				return err
			}
			config.Files = files
			return actions.Plan(config)
		},
	}
	cmd.Flags().StringArrayVarP(&config.Files, "file", "f", nil, "File to plan, can be repeated")
	cmd.Flags().Int64Var(&config.ChunkSize, "chunk-size", 0, "Chunk size in bytes, overrides RANGEUPLOAD_CHUNK_SIZE")
	cmd.Flags().BoolVar(&config.JsonOutput, "json", false, "Outputs the ranges as JSON only")
	return cmd
}

func getFiles(flagFiles, args []string) ([]string, error) {
	files := append(append([]string{}, flagFiles...), args...)
	if len(files) > 0 {
		return files, nil
	}
	if environment.IsDockerInstance() {
		dockerFile, ok := getDockerUpload()
		if ok {
			return []string{dockerFile}, nil
		}
		return nil, errors.New("missing parameter -f and no file or more than one file found in " + dockerUploadFolder)
	}
	return nil, errors.New("missing parameter -f")
}

func getDockerUpload() (string, bool) {
	entries, err := os.ReadDir(dockerUploadFolder)
	if err != nil {
		return "", false
	}

	var fileName string
	var fileFound bool
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			if fileFound {
				// More than one file exist
				return "", false
			}
			fileName = entry.Name()
			fileFound = true
		}
	}
	if !fileFound {
		return "", false
	}
	return filepath.Join(dockerUploadFolder, fileName), true
}

// GetConfigLocation returns the path passed with -c, the docker config path or the default
// file name in the working directory
func GetConfigLocation(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if environment.IsDockerInstance() {
		return cliconstants.DockerFolderConfigFile
	}
	return cliconstants.DefaultConfigFileName
}
