package editor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// EditorEnv overrides VISUAL and EDITOR for zgate only.
const EditorEnv = "ZGATE_EDITOR"

func DetectEditor() string {
	for _, env := range []string{EditorEnv, "VISUAL", "EDITOR"} {
		if e := strings.TrimSpace(os.Getenv(env)); e != "" {
			return e
		}
	}
	return "vi"
}

// Open opens the file in the user's editor and blocks until the editor exits.
func Open(path string) error {
	parts := strings.Fields(DetectEditor())
	bin := parts[0]
	args := append(parts[1:], path)

	cmd := exec.Command(bin, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("editor exited with error: %w", err)
	}
	return nil
}

// Edit writes content to a temporary file named after name, opens it in
// the editor and returns the edited text. changed is false when the file
// was saved unmodified or only gained or lost a final newline.
func Edit(name, content string) (edited string, changed bool, err error) {
	tmpFile, err := writeTempFile(name, content)
	if err != nil {
		return "", false, err
	}
	defer os.Remove(tmpFile)

	if err := Open(tmpFile); err != nil {
		return "", false, err
	}

	data, err := os.ReadFile(tmpFile)
	if err != nil {
		return "", false, fmt.Errorf("failed to read edited file: %w", err)
	}
	edited = string(data)
	return edited, strings.TrimSuffix(edited, "\n") != strings.TrimSuffix(content, "\n"), nil
}

func writeTempFile(name, content string) (string, error) {
	ext := filepath.Ext(name)
	if ext == "" {
		ext = ".txt"
	}
	prefix := strings.TrimSuffix(name, ext) + "-"

	f, err := os.CreateTemp("", prefix+"*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	return f.Name(), nil
}
