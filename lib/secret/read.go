// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// maxKeyFile bounds what ReadKeyFile will load. An age identity file
// is well under a kilobyte.
const maxKeyFile = 64 << 10

// ReadKeyFile loads the single key held in a key file, such as the age
// identity named by memory.identity_file. A path of "-" reads stdin.
// Lines starting with '#' and blank lines are skipped, which is the
// layout age-keygen writes; exactly one line must remain. The file's
// bytes are zeroed once the key is in protected memory.
func ReadKeyFile(path string) (*Buffer, error) {
	data, err := readBounded(path)
	if err != nil {
		return nil, err
	}
	defer Zero(data)

	var key []byte
	for line := range bytes.Lines(data) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		if key != nil {
			return nil, fmt.Errorf("key file %s holds more than one key", path)
		}
		key = line
	}
	if key == nil {
		return nil, fmt.Errorf("key file %s holds no key", path)
	}
	return NewFromBytes(key)
}

func readBounded(path string) ([]byte, error) {
	source := io.Reader(os.Stdin)
	name := "stdin"
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		source, name = file, path
	}

	data, err := io.ReadAll(io.LimitReader(source, maxKeyFile+1))
	if err != nil {
		Zero(data)
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if len(data) > maxKeyFile {
		Zero(data)
		return nil, fmt.Errorf("key file %s is larger than %d bytes", name, maxKeyFile)
	}
	return data, nil
}
