package interfaces

import (
	"os"

	"github.com/forceu/rangeupload/internal/models"
)

// DriverLocal is returned as a name for the Local Storage driver
const DriverLocal = "localstorage"

// DriverAws is returned as a name for the AWS Storage driver
const DriverAws = "awss3"

// System is a driver for storing completed uploads
type System interface {
	// Init sets the driver configurations and returns true if successful
	Init(input any) bool
	// IsAvailable returns true if the driver can be used
	IsAvailable() bool
	// GetSystemName returns the name of the driver
	GetSystemName() string
	// MoveToFilesystem moves an assembled file from the local filesystem to the driver's
	// filesystem. The returned StoredFile contains the final name and path
	MoveToFilesystem(sourceFile *os.File, file models.StoredFile) (models.StoredFile, error)
	// FileExists returns true if the system contains a file with the given name
	FileExists(name string) (bool, error)
}
