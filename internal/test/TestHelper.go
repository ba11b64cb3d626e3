package test

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/stretchr/testify/assert"
)

// MockT is the subset of testing.T used by the assertions
type MockT interface {
	Errorf(format string, args ...interface{})
	Helper()
}

// IsEqualString fails test if got and want are not identical
func IsEqualString(t MockT, got, want string) {
	t.Helper()
	assert.Equal(t, want, got)
}

// IsNotEqualString fails test if got and want are identical
func IsNotEqualString(t MockT, got, want string) {
	t.Helper()
	assert.NotEqual(t, want, got)
}

// IsEqualBool fails test if got and want are not identical
func IsEqualBool(t MockT, got, want bool) {
	t.Helper()
	assert.Equal(t, want, got)
}

// IsEqualInt fails test if got and want are not identical
func IsEqualInt(t MockT, got, want int) {
	t.Helper()
	assert.Equal(t, want, got)
}

// IsEqualInt64 fails test if got and want are not identical
func IsEqualInt64(t MockT, got, want int64) {
	t.Helper()
	assert.Equal(t, want, got)
}

// IsEqualFloat fails test if got is not within delta of want
func IsEqualFloat(t MockT, got, want, delta float64) {
	t.Helper()
	assert.InDelta(t, want, got, delta)
}

// IsEqual fails test if got and want are not deeply equal
func IsEqual[T any](t MockT, got, want T) {
	t.Helper()
	assert.Equal(t, want, got)
}

// IsNotEmpty fails test if string is empty
func IsNotEmpty(t MockT, s string) {
	t.Helper()
	assert.NotEmpty(t, s)
}

// IsEmpty fails test if string is not empty
func IsEmpty(t MockT, s string) {
	t.Helper()
	assert.Empty(t, s)
}

// IsNil fails test if error not nil
func IsNil(t MockT, got error) {
	t.Helper()
	assert.NoError(t, got)
}

// IsNotNil fails test if error is nil
func IsNotNil(t MockT, got error) {
	t.Helper()
	assert.Error(t, got)
}

// IsErrorIs fails test if got does not wrap want
func IsErrorIs(t MockT, got, want error) {
	t.Helper()
	assert.ErrorIs(t, got, want)
}

// Contains fails test if s does not contain substr
func Contains(t MockT, s, substr string) {
	t.Helper()
	assert.Contains(t, s, substr)
}

// FileExists fails test a file does not exist
func FileExists(t MockT, name string) {
	t.Helper()
	assert.FileExists(t, name)
}

// FileDoesNotExist fails test a file exists
func FileDoesNotExist(t MockT, name string) {
	t.Helper()
	assert.NoFileExists(t, name)
}

// ExpectPanic fails the test if the calling function did not panic. Has to be called with defer
func ExpectPanic(t MockT) {
	t.Helper()
	if r := recover(); r == nil {
		t.Errorf("The code did not panic")
	}
}

// ExitCode returns a function to replace os.Exit()
func ExitCode(t MockT, want int) func(code int) {
	t.Helper()
	return func(code int) {
		IsEqualInt(t, code, want)
	}
}

// StartMockInputStdin simulates a user input on stdin. Call StopMockInputStdin afterwards!
func StartMockInputStdin(input string) *os.File {
	r, w, err := os.Pipe()
	if err != nil {
		panic(err)
	}
	_, err = w.Write([]byte(input))
	if err != nil {
		panic(err)
	}
	w.Close()

	stdin := os.Stdin
	os.Stdin = r
	return stdin
}

// StopMockInputStdin needs to be called after StartMockInputStdin
func StopMockInputStdin(stdin *os.File) {
	os.Stdin = stdin
}

// Header is a simple struct to pass header values for testing
type Header struct {
	Name  string
	Value string
}

// HttpTestConfig describes a request and the expected response
type HttpTestConfig struct {
	Url             string
	Method          string
	Headers         []Header
	Body            []byte
	RequiredContent []string
	ExcludedContent []string
	ResultCode      int
}

func (c *HttpTestConfig) init(t MockT) {
	t.Helper()
	if c.Url == "" {
		t.Errorf("No url passed!")
	}
	if c.Method == "" {
		c.Method = "GET"
	}
	if c.ResultCode == 0 {
		c.ResultCode = 200
	}
}

// HttpPageResult tests if a http server is outputting the correct result and returns the response
// headers and body
func HttpPageResult(t MockT, config HttpTestConfig) (http.Header, string) {
	t.Helper()
	config.init(t)
	req, err := http.NewRequest(config.Method, config.Url, bytes.NewReader(config.Body))
	IsNil(t, err)
	if err != nil {
		return nil, ""
	}
	for _, header := range config.Headers {
		req.Header.Set(header.Name, header.Value)
	}
	resp, err := http.DefaultClient.Do(req)
	IsNil(t, err)
	if err != nil {
		return nil, ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != config.ResultCode {
		t.Errorf("Status %d != %d", resp.StatusCode, config.ResultCode)
	}
	content, err := io.ReadAll(resp.Body)
	IsNil(t, err)
	for _, requiredString := range config.RequiredContent {
		if !strings.Contains(string(content), requiredString) {
			t.Errorf(config.Url + ": Incorrect response. Got:\n" + string(content))
		}
	}
	for _, excludedString := range config.ExcludedContent {
		if strings.Contains(string(content), excludedString) {
			t.Errorf(config.Url + ": Incorrect response. Got:\n" + string(content))
		}
	}
	return resp.Header, string(content)
}
