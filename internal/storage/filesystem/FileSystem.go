package filesystem

import (
	"errors"

	"github.com/forceu/rangeupload/internal/models"
	"github.com/forceu/rangeupload/internal/storage/filesystem/interfaces"
	"github.com/forceu/rangeupload/internal/storage/filesystem/localstorage"
	"github.com/forceu/rangeupload/internal/storage/filesystem/s3filesystem"
)

var dataFilesystem interfaces.System
var s3FileSystem interfaces.System

// ActiveStorageSystem is a driver for the storage system that is in use currently. Can be either
// the local filesystem or S3, depending on the configuration
var ActiveStorageSystem interfaces.System

// Init initializes the local filesystem and must be called on start
func Init(pathData string) {
	dataFilesystem = localstorage.GetDriver()
	dataFilesystem.Init(localstorage.Config{
		DataPath: pathData,
	})
	ActiveStorageSystem = dataFilesystem
}

// SetAws sets the AWS filesystem as the default storage. The local filesystem stays active,
// if the bucket cannot be reached
func SetAws(config models.AwsConfig) error {
	if !config.IsAllProvided() {
		return errors.New("incomplete AWS configuration")
	}
	driver := s3filesystem.GetDriver()
	if !driver.Init(s3filesystem.Config{Aws: config}) {
		return errors.New("unable to reach AWS bucket " + config.Bucket)
	}
	s3FileSystem = driver
	ActiveStorageSystem = s3FileSystem
	return nil
}

// SetLocal sets the local filesystem as the default storage
func SetLocal() {
	ActiveStorageSystem = dataFilesystem
}
