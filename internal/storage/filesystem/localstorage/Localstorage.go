package localstorage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forceu/rangeupload/internal/helper"
	"github.com/forceu/rangeupload/internal/models"
	fileInterfaces "github.com/forceu/rangeupload/internal/storage/filesystem/interfaces"
)

// GetDriver returns a driver for the local file system
func GetDriver() fileInterfaces.System {
	return &localStorageDriver{}
}

type localStorageDriver struct {
	dataPath   string
	filePrefix string
}

// Config is the required configuration for the driver
type Config struct {
	// DataPath is the top directory where files are stored
	DataPath string
	// FilePrefix is an optional setting, if files are to be stored with the prefix
	FilePrefix string
}

// MoveToFilesystem moves a file from the local filesystem to data path. If a file with the same
// name exists, a counter is appended to the name
func (d *localStorageDriver) MoveToFilesystem(sourceFile *os.File, file models.StoredFile) (models.StoredFile, error) {
	err := sourceFile.Close()
	if err != nil {
		return models.StoredFile{}, err
	}
	if file.Name == "" {
		return models.StoredFile{}, errors.New("empty file name passed")
	}
	if !helper.FolderExists(d.getPath()) {
		err = os.MkdirAll(d.getPath(), 0770)
		if err != nil {
			return models.StoredFile{}, err
		}
	}
	file.Name = d.getFreeName(file.Name)
	file.Path = d.getPath() + d.filePrefix + file.Name
	err = os.Rename(sourceFile.Name(), file.Path)
	if err != nil {
		return models.StoredFile{}, err
	}
	return file, nil
}

func (d *localStorageDriver) getFreeName(name string) string {
	if !helper.FileExists(d.getPath() + d.filePrefix + name) {
		return name
	}
	extension := filepath.Ext(name)
	base := strings.TrimSuffix(name, extension)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, extension)
		if !helper.FileExists(d.getPath() + d.filePrefix + candidate) {
			return candidate
		}
	}
}

// Init sets the driver configurations and returns true if successful
// Requires a Config struct as input
func (d *localStorageDriver) Init(input any) bool {
	config, ok := input.(Config)
	if !ok {
		panic("runtime exception: input for local filesystem is not a config object")
	}
	if config.DataPath == "" {
		panic("empty path has been passed")
	}
	if !strings.HasSuffix(config.DataPath, string(os.PathSeparator)) {
		config.DataPath = config.DataPath + string(os.PathSeparator)
	}
	d.dataPath = config.DataPath
	d.filePrefix = config.FilePrefix
	return true
}

// IsAvailable returns true if the data path exists or can be created
func (d *localStorageDriver) IsAvailable() bool {
	return os.MkdirAll(d.getPath(), 0770) == nil
}

// FileExists returns true if the system contains a file with the given name
func (d *localStorageDriver) FileExists(name string) (bool, error) {
	return helper.FileExists(d.getPath() + d.filePrefix + name), nil
}

// GetSystemName returns the name of the driver
func (d *localStorageDriver) GetSystemName() string {
	return fileInterfaces.DriverLocal
}

func (d *localStorageDriver) getPath() string {
	if d.dataPath == "" {
		panic("no path has been set!")
	}
	return d.dataPath
}
