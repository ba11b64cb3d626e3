package cliconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forceu/rangeupload/cmd/rangeupload/cliapi"
	"github.com/forceu/rangeupload/internal/helper"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// ErrNoLogin is returned by Load if no configuration file exists
var ErrNoLogin = errors.New("no login information found")

// Config is the content of the login file
type Config struct {
	Url         string `yaml:"Url"`
	Credential  string `yaml:"Credential"`
	Description string `yaml:"Description"`
}

// readLine and readSecret are replaced in tests
var readLine = helper.ReadLine
var readSecret = readHiddenLine

// CreateLogin asks for the server url and the credential, tests the connection and saves
// the configuration to path
func CreateLogin(path string) error {
	fmt.Print("Server URL: ")
	url := strings.TrimSuffix(strings.TrimSpace(readLine()), "/")
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return errors.New("URL must start with http:// or https://")
	}
	if strings.HasPrefix(url, "http://") {
		fmt.Println("WARNING: This URL uses an insecure connection. All data, including your credential, will be sent in plain text.")
	}
	fmt.Print("Credential: ")
	credential, err := readSecret()
	fmt.Println()
	if err != nil {
		return err
	}
	credential = NormaliseCredential(credential)
	if len(credential) < 3 {
		return errors.New("invalid credential")
	}
	fmt.Print("Default description (optional): ")
	description := strings.TrimSpace(readLine())

	fmt.Print("Testing connection...")
	err = cliapi.CheckLogin(url, credential)
	if err != nil {
		fmt.Println("FAIL")
		return err
	}
	fmt.Println("OK")
	err = Save(path, Config{Url: url, Credential: credential, Description: description})
	if err != nil {
		return fmt.Errorf("could not save login information: %w", err)
	}
	fmt.Println("Login successful")
	return nil
}

// NormaliseCredential adds the Bearer scheme if the credential does not contain one
func NormaliseCredential(credential string) string {
	credential = strings.TrimSpace(credential)
	if credential == "" || strings.Contains(credential, " ") {
		return credential
	}
	return "Bearer " + credential
}

func readHiddenLine() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return helper.ReadLine(), nil
	}
	secret, err := term.ReadPassword(fd)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}

// Save writes the configuration to path
func Save(path string, config Config) error {
	if dir := filepath.Dir(path); dir != "." {
		helper.CreateDir(dir)
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Load reads the configuration from path
func Load(path string) (Config, error) {
	if !helper.FileExists(path) {
		return Config{}, ErrNoLogin
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("could not read login information: %w", err)
	}
	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return Config{}, fmt.Errorf("could not read login information: %w", err)
	}
	if config.Url == "" || config.Credential == "" {
		return Config{}, errors.New("login information is incomplete")
	}
	return config, nil
}

// Delete removes the configuration file
func Delete(path string) error {
	if !helper.FileExists(path) {
		return nil
	}
	return os.Remove(path)
}
