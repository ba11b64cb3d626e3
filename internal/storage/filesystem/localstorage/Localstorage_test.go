package localstorage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/forceu/rangeupload/internal/models"
	"github.com/forceu/rangeupload/internal/storage/filesystem/interfaces"
	"github.com/forceu/rangeupload/internal/test"
)

func TestMain(m *testing.M) {
	_ = os.MkdirAll("test/data", 0777)
	exitVal := m.Run()
	_ = os.RemoveAll("test")
	os.Exit(exitVal)
}

func getTestDriver(t *testing.T) *localStorageDriver {
	t.Helper()
	driver := GetDriver()
	result, ok := driver.(*localStorageDriver)
	test.IsEqualBool(t, ok, true)
	return result
}

func initDriver(t *testing.T, d *localStorageDriver) {
	ok := d.Init(Config{
		DataPath:   "test/data",
		FilePrefix: "123",
	})
	test.IsEqualBool(t, ok, true)
}

func createSourceFile(t *testing.T, content string) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chunk-source")
	err := os.WriteFile(path, []byte(content), 0600)
	test.IsNil(t, err)
	file, err := os.Open(path)
	test.IsNil(t, err)
	return file
}

func TestGetDriver(t *testing.T) {
	driver := getTestDriver(t)
	test.IsEqualString(t, driver.GetSystemName(), interfaces.DriverLocal)
}

func TestLocalStorageDriver_Init(t *testing.T) {
	driver := getTestDriver(t)
	ok := driver.Init(Config{
		DataPath:   "test",
		FilePrefix: "tpref",
	})
	test.IsEqualBool(t, ok, true)
	test.IsEqualString(t, driver.getPath(), "test/")
	ok = driver.Init(Config{
		DataPath: "test2/",
	})
	test.IsEqualBool(t, ok, true)
	test.IsEqualString(t, driver.getPath(), "test2/")
	defer test.ExpectPanic(t)
	driver.Init(struct {
		invalid string
	}{invalid: "true"})
}

func TestLocalStorageDriver_Init2(t *testing.T) {
	driver := getTestDriver(t)
	defer test.ExpectPanic(t)
	driver.Init(Config{DataPath: ""})
}

func TestGetPathPanics(t *testing.T) {
	driver := getTestDriver(t)
	defer test.ExpectPanic(t)
	driver.getPath()
}

func TestIsAvailable(t *testing.T) {
	driver := getTestDriver(t)
	initDriver(t, driver)
	test.IsEqualBool(t, driver.IsAvailable(), true)
}

func TestMoveToFilesystem(t *testing.T) {
	driver := getTestDriver(t)
	initDriver(t, driver)

	source := createSourceFile(t, "first")
	stored, err := driver.MoveToFilesystem(source, models.StoredFile{Name: "report.pdf", Size: 5})
	test.IsNil(t, err)
	test.IsEqualString(t, stored.Name, "report.pdf")
	test.IsEqualString(t, stored.Path, "test/data/123report.pdf")
	test.FileExists(t, "test/data/123report.pdf")
	test.FileDoesNotExist(t, source.Name())
	exists, err := driver.FileExists("report.pdf")
	test.IsNil(t, err)
	test.IsEqualBool(t, exists, true)

	source = createSourceFile(t, "second")
	stored, err = driver.MoveToFilesystem(source, models.StoredFile{Name: "report.pdf", Size: 6})
	test.IsNil(t, err)
	test.IsEqualString(t, stored.Name, "report (1).pdf")
	test.IsEqualString(t, stored.Path, "test/data/123report (1).pdf")

	source = createSourceFile(t, "third")
	stored, err = driver.MoveToFilesystem(source, models.StoredFile{Name: "report.pdf", Size: 5})
	test.IsNil(t, err)
	test.IsEqualString(t, stored.Name, "report (2).pdf")

	content, err := os.ReadFile("test/data/123report (1).pdf")
	test.IsNil(t, err)
	test.IsEqualString(t, string(content), "second")

	source = createSourceFile(t, "x")
	_, err = driver.MoveToFilesystem(source, models.StoredFile{})
	test.IsNotNil(t, err)
}

func TestMoveToNewFolder(t *testing.T) {
	driver := getTestDriver(t)
	ok := driver.Init(Config{DataPath: "test/nested/data"})
	test.IsEqualBool(t, ok, true)
	source := createSourceFile(t, "content")
	stored, err := driver.MoveToFilesystem(source, models.StoredFile{Name: "notes.txt"})
	test.IsNil(t, err)
	test.IsEqualString(t, stored.Path, "test/nested/data/notes.txt")
	test.FileExists(t, "test/nested/data/notes.txt")
}
