package s3filesystem

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/forceu/rangeupload/internal/models"
	"github.com/forceu/rangeupload/internal/storage/filesystem/interfaces"
	"github.com/forceu/rangeupload/internal/test"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
)

var mockServer *httptest.Server

func TestMain(m *testing.M) {
	backend := s3mem.New()
	_ = backend.CreateBucket("rangeupload-test")
	faker := gofakes3.New(backend)
	mockServer = httptest.NewServer(faker.Server())
	exitVal := m.Run()
	mockServer.Close()
	os.Exit(exitVal)
}

func getTestConfig(bucket string) Config {
	return Config{Aws: models.AwsConfig{
		Bucket:    bucket,
		Region:    "mock-region-1",
		Endpoint:  mockServer.URL,
		KeyId:     "accId",
		KeySecret: "accKey",
		KeyPrefix: "uploads/",
	}}
}

func getTestDriver(t *testing.T) *s3StorageDriver {
	t.Helper()
	driver := GetDriver()
	result, ok := driver.(*s3StorageDriver)
	test.IsEqualBool(t, ok, true)
	return result
}

func TestGetDriver(t *testing.T) {
	driver := getTestDriver(t)
	test.IsEqualString(t, driver.GetSystemName(), interfaces.DriverAws)
	test.IsEqualBool(t, driver.IsAvailable(), false)
}

func TestS3StorageDriver_Init(t *testing.T) {
	driver := getTestDriver(t)
	defer test.ExpectPanic(t)
	driver.Init("test")
}

func TestS3StorageDriver_Init2(t *testing.T) {
	driver := getTestDriver(t)
	defer test.ExpectPanic(t)
	driver.Init(Config{})
}

func TestS3StorageDriver_Init3(t *testing.T) {
	driver := getTestDriver(t)
	ok := driver.Init(getTestConfig("invalid"))
	test.IsEqualBool(t, ok, false)
	test.IsEqualBool(t, driver.IsAvailable(), false)
	ok = driver.Init(getTestConfig("rangeupload-test"))
	test.IsEqualBool(t, ok, true)
	test.IsEqualBool(t, driver.IsAvailable(), true)
}

func TestMoveToFilesystem(t *testing.T) {
	driver := getTestDriver(t)
	_, err := driver.FileExists("report.pdf")
	test.IsNotNil(t, err)
	_, err = driver.MoveToFilesystem(nil, models.StoredFile{Name: "report.pdf"})
	test.IsNotNil(t, err)

	test.IsEqualBool(t, driver.Init(getTestConfig("rangeupload-test")), true)
	exists, err := driver.FileExists("report.pdf")
	test.IsNil(t, err)
	test.IsEqualBool(t, exists, false)

	path := filepath.Join(t.TempDir(), "chunk-session_1")
	err = os.WriteFile(path, []byte("assembled content"), 0600)
	test.IsNil(t, err)
	file, err := os.Open(path)
	test.IsNil(t, err)
	stored, err := driver.MoveToFilesystem(file, models.StoredFile{
		Name:        "report.pdf",
		Size:        17,
		ContentType: "text/plain; charset=utf-8",
	})
	test.IsNil(t, err)
	test.IsEqualString(t, stored.Path, "s3://rangeupload-test/uploads/report.pdf")
	test.IsEqualInt64(t, stored.Size, 17)
	test.FileDoesNotExist(t, path)

	exists, err = driver.FileExists("report.pdf")
	test.IsNil(t, err)
	test.IsEqualBool(t, exists, true)
}
