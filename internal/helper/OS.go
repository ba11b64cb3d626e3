package helper

/**
Simplified OS functions
*/

import (
	"bufio"
	"os"
	"strings"
)

// FolderExists returns true if a folder exists
func FolderExists(folder string) bool {
	_, err := os.Stat(folder)
	if err == nil {
		return true
	}
	return !os.IsNotExist(err)
}

// FileExists returns true if a file exists
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return !info.IsDir()
}

// CreateDir creates the folder and its parents if it does not exist
func CreateDir(folder string) {
	if !FolderExists(folder) {
		err := os.MkdirAll(folder, 0770)
		Check(err)
	}
}

// ReadLine reads a line from the terminal and returns it as a string
func ReadLine() string {
	reader := bufio.NewReader(os.Stdin)
	text, _ := reader.ReadString('\n')
	text = strings.TrimSuffix(text, "\n")
	return strings.TrimSuffix(text, "\r")
}

// Check panics if error is not nil
func Check(e error) {
	if e != nil {
		panic(e)
	}
}
