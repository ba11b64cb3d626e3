package s3filesystem

import (
	"errors"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/forceu/rangeupload/internal/models"
	fileInterfaces "github.com/forceu/rangeupload/internal/storage/filesystem/interfaces"
)

// GetDriver returns a driver for the AWS file system
func GetDriver() fileInterfaces.System {
	return &s3StorageDriver{}
}

type s3StorageDriver struct {
	config  models.AwsConfig
	session *session.Session
}

// Config is the required configuration for the driver
type Config struct {
	Aws models.AwsConfig
}

func createSession(config models.AwsConfig) (*session.Session, error) {
	s3Config := &aws.Config{
		Credentials:      credentials.NewStaticCredentials(config.KeyId, config.KeySecret, ""),
		Region:           aws.String(config.Region),
		S3ForcePathStyle: aws.Bool(true),
	}
	if config.Endpoint != "" {
		s3Config.Endpoint = aws.String(config.Endpoint)
	}
	return session.NewSession(s3Config)
}

// Init sets the driver configurations and returns true if the bucket can be reached
// Requires a Config struct as input
func (d *s3StorageDriver) Init(input any) bool {
	config, ok := input.(Config)
	if !ok {
		panic("runtime exception: input for aws filesystem is not a config object")
	}
	if config.Aws.Bucket == "" {
		panic("empty bucket has been passed")
	}
	d.config = config.Aws
	sess, err := createSession(config.Aws)
	if err != nil {
		return false
	}
	d.session = sess
	return d.IsAvailable()
}

// IsAvailable returns true if the bucket exists and the credentials are valid
func (d *s3StorageDriver) IsAvailable() bool {
	if d.session == nil {
		return false
	}
	_, err := s3.New(d.session).HeadBucket(&s3.HeadBucketInput{
		Bucket: aws.String(d.config.Bucket),
	})
	return err == nil
}

func (d *s3StorageDriver) getKey(name string) string {
	return d.config.KeyPrefix + name
}

// MoveToFilesystem uploads a file from the local filesystem to the bucket and deletes the
// local copy afterwards
func (d *s3StorageDriver) MoveToFilesystem(sourceFile *os.File, file models.StoredFile) (models.StoredFile, error) {
	if d.session == nil {
		return models.StoredFile{}, errors.New("aws driver has not been initialised")
	}
	uploader := s3manager.NewUploader(d.session)
	input := &s3manager.UploadInput{
		Bucket: aws.String(d.config.Bucket),
		Key:    aws.String(d.getKey(file.Name)),
		Body:   sourceFile,
	}
	if file.ContentType != "" {
		input.ContentType = aws.String(file.ContentType)
	}
	_, err := uploader.Upload(input)
	if err != nil {
		return models.StoredFile{}, err
	}
	err = sourceFile.Close()
	if err != nil {
		return models.StoredFile{}, err
	}
	err = os.Remove(sourceFile.Name())
	if err != nil {
		return models.StoredFile{}, err
	}
	file.Path = "s3://" + d.config.Bucket + "/" + d.getKey(file.Name)
	return file, nil
}

// FileExists returns true if the bucket contains an object with the given name
func (d *s3StorageDriver) FileExists(name string) (bool, error) {
	if d.session == nil {
		return false, errors.New("aws driver has not been initialised")
	}
	_, err := s3.New(d.session).HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(d.config.Bucket),
		Key:    aws.String(d.getKey(name)),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == "NotFound" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetSystemName returns the name of the driver
func (d *s3StorageDriver) GetSystemName() string {
	return fileInterfaces.DriverAws
}
