// Package attach reads user-chosen files and folds them into outgoing
// chat messages.
package attach

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lmbridge "github.com/Paranoid-AF/lmbridge"
)

// DefaultLabel introduces an attached file in the composed message. %s is
// replaced with the file name.
const DefaultLabel = "Прикрепленный файл (%s):"

// Picker asks the user for a file. An empty path with a nil error means
// the user cancelled.
type Picker interface {
	Pick(ctx context.Context) (string, error)
}

// PathPicker is a Picker for a path that is already known.
type PathPicker string

// Pick returns the path itself.
func (p PathPicker) Pick(context.Context) (string, error) {
	return string(p), nil
}

// Pick runs the picker and reads the chosen file. It returns nil, nil when
// there is no picker or the user cancelled.
func Pick(ctx context.Context, picker Picker) (*lmbridge.AttachedFile, error) {
	if picker == nil {
		return nil, nil
	}
	path, err := picker.Pick(ctx)
	if err != nil {
		return nil, &lmbridge.FileReadFailure{Path: path, Err: err}
	}
	if path == "" {
		return nil, nil
	}
	return Read(path)
}

// Read loads the whole file at path as text. Name is the base name.
func Read(path string) (*lmbridge.AttachedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &lmbridge.FileReadFailure{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &lmbridge.FileReadFailure{Path: path, Err: errors.New("is a directory")}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &lmbridge.FileReadFailure{Path: path, Err: err}
	}
	return &lmbridge.AttachedFile{
		Name:    filepath.Base(path),
		Content: string(data),
	}, nil
}

// Compose builds the message sent to the model. Without a file it returns
// text unchanged. With one it appends the label line and the content in a
// fenced block. An empty label uses DefaultLabel; a label without %s gets
// the name appended in parentheses.
func Compose(text string, file *lmbridge.AttachedFile, label string) string {
	if file == nil {
		return text
	}
	return text + "\n\n" + Label(label, file.Name) + "\n```\n" + file.Content + "\n```"
}

// Label formats the introduction line for the file called name.
func Label(label, name string) string {
	if label == "" {
		label = DefaultLabel
	}
	if strings.Count(label, "%s") != 1 || strings.Count(label, "%") != 1 {
		return strings.TrimSuffix(label, ":") + " (" + name + "):"
	}
	return fmt.Sprintf(label, name)
}
