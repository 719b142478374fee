package sdk

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SealedExtension is appended to files written by EncryptFileFromPath.
const SealedExtension = ".sealed"

// EncryptFileFromPath seals the file at path and writes it next to the original with
// SealedExtension appended. It returns the path written.
func (e *EncryptionSession) EncryptFileFromPath(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sealed, err := e.EncryptFile(content, filepath.Base(path))
	if err != nil {
		return "", err
	}
	out := path + SealedExtension
	if err := os.WriteFile(out, sealed, 0o600); err != nil {
		return "", err
	}
	return out, nil
}

// DecryptFileFromPath opens the sealed file at path and writes the content, under the
// file name it was sealed with, in the same directory. An existing file is never
// overwritten: a numbered name is picked instead. It returns the path written.
func (e *EncryptionSession) DecryptFileFromPath(ctx context.Context, path string) (string, error) {
	sealed, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	content, name, err := e.DecryptFile(ctx, sealed)
	if err != nil {
		return "", err
	}
	return writeUnique(filepath.Dir(path), safeName(name), content)
}

// safeName strips directories from a name chosen by the sender.
func safeName(name string) string {
	name = filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, `\`, "/")))
	if name == "/" || name == "." || name == "" {
		return "decrypted"
	}
	return name
}

func writeUnique(dir, name string, content []byte) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; i < 1000; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		out := filepath.Join(dir, candidate)
		f, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(content); err != nil {
			f.Close()
			return "", err
		}
		return out, f.Close()
	}
	return "", fmt.Errorf("no free file name for %s in %s", name, dir)
}
