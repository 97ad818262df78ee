package saver

import (
	"errors"
	"io"
	"os"
	"strings"
)

// writeFile creates path, hands it to write and closes it. A failed Close is
// reported, since buffered data may be lost there.
func writeFile(path string, write func(w io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return write(f)
}

func writeLogSidecar(path string, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	return os.WriteFile(logSidecarPath(path), []byte(strings.Join(lines, "\n")+"\n"), 0644)
}
