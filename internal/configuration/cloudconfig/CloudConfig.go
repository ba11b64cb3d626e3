package cloudconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/forceu/rangeupload/internal/environment"
	"github.com/forceu/rangeupload/internal/helper"
	"github.com/forceu/rangeupload/internal/models"
	"gopkg.in/yaml.v3"
)

const fileName = "cloudconfig.yml"

// CloudConfig contains all configuration values / credentials for cloud storage
type CloudConfig struct {
	Aws models.AwsConfig `yaml:"aws"`
}

// GetPath returns the location of cloudconfig.yml inside the config directory
func GetPath(env environment.Environment) string {
	return filepath.Join(env.ConfigDir, fileName)
}

// Load loads cloud storage configuration / credentials from env variables or cloudconfig.yml
// in the config directory
func Load(env environment.Environment) (CloudConfig, bool) {
	if env.IsAwsProvided() {
		return CloudConfig{Aws: env.GetAwsConfig()}, true
	}
	path := GetPath(env)
	if helper.FileExists(path) {
		return loadFromFile(path)
	}
	return CloudConfig{}, false
}

// Write saves the cloudconfig file to path
func Write(path string, config CloudConfig) error {
	helper.CreateDir(filepath.Dir(path))
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	err = encoder.Encode(config)
	if err != nil {
		return err
	}
	return encoder.Close()
}

// Delete removes the cloud config file
func Delete(path string) error {
	if helper.FileExists(path) {
		err := os.Remove(path)
		if err != nil {
			return err
		}
	}
	return nil
}

func loadFromFile(path string) (CloudConfig, bool) {
	var result CloudConfig
	file, err := os.ReadFile(path)
	if err != nil {
		fmt.Println("Warning: Unable to read cloudconfig.yml!")
		return CloudConfig{}, false
	}
	err = yaml.Unmarshal(file, &result)
	if err != nil {
		fmt.Println("Warning: cloudconfig.yml contains invalid yaml!")
		return CloudConfig{}, false
	}
	if !result.Aws.IsAllProvided() {
		fmt.Println("Warning: cloudconfig.yml is incomplete!")
		return CloudConfig{}, false
	}
	return result, true
}
