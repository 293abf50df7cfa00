// SPDX-License-Identifier: MIT
package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	ErrNotWAV       = errors.New("not a .wav file")
	ErrFileNotFound = errors.New("file does not exist")
)

// ValidatePath checks that path names an existing regular file ending in .wav.
func ValidatePath(path string) error {
	if !strings.HasSuffix(strings.ToLower(path), ".wav") {
		return fmt.Errorf("%s: %w", path, ErrNotWAV)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, ErrFileNotFound)
		}
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory: %w", path, ErrNotWAV)
	}
	return nil
}

// PromptPath asks on w for a .wav path and reads answers from r until one
// passes ValidatePath. io.EOF is returned when input runs out.
func PromptPath(r io.Reader, w io.Writer) (string, error) {
	fmt.Fprintln(w, "Pass the file name (.wav):")
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		path := strings.TrimSpace(scanner.Text())
		if path == "" {
			continue
		}
		err := ValidatePath(path)
		switch {
		case err == nil:
			fmt.Fprintln(w, "File is okay, enjoy!")
			return path, nil
		case errors.Is(err, ErrFileNotFound):
			fmt.Fprintln(w, "The file does not exist. Please enter a valid .wav file:")
		default:
			fmt.Fprintln(w, "Please enter a valid .wav file:")
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
