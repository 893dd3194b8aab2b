package handshake

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"inlinefs/internal/logging"
	"inlinefs/internal/vfs"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
)

var (
	logger = logging.GetLogger().WithPrefix("handshake")
)

// filesPath locates the file table inside the payload.
const filesPath = "vfs.files"

// base64Space is removed from entries before decoding.
const base64Space = " \t\r\n\f\v"

// Read consumes exactly one line from r and returns the virtual files it
// declares, keyed by normalized path. When two declared paths normalize to
// the same key the later one in the line wins.
//
// Read never fails: empty input, malformed JSON or a payload without a
// "vfs.files" object yields an empty map, and entries that are not valid
// base64 strings are skipped. Whitespace inside an entry is ignored. A key
// repeated at the "vfs" or "files" level takes its last value.
//
// If r implements io.ByteReader nothing past the newline is consumed, so the
// remainder of r can be handed on to the consumer. Other readers are wrapped
// in a bufio.Reader, which may read ahead.
func Read(r io.Reader) map[string][]byte {
	line, err := readLine(r)
	if err != nil {
		logger.Debug("Handshake read failed: %v", err)
	}
	return Parse(line)
}

// ReadStore reads a handshake line from r and builds the store from it.
func ReadStore(r io.Reader) *vfs.Store {
	return vfs.NewStore(Read(r))
}

// ReadFile reads a handshake line stored in a file. A missing or unreadable
// file yields an empty map, as for stdin.
func ReadFile(fsys afero.Fs, path string) map[string][]byte {
	f, err := fsys.Open(path)
	if err != nil {
		logger.Debug("Cannot open payload file %q: %v", path, err)
		return map[string][]byte{}
	}
	defer f.Close()
	return Read(f)
}

// Parse decodes a single handshake line. See Read for the failure rules.
func Parse(line []byte) map[string][]byte {
	files := make(map[string][]byte)

	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		logger.Debug("Empty handshake, no virtual files")
		return files
	}
	if !gjson.ValidBytes(line) {
		logger.Debug("Handshake is not valid JSON, no virtual files")
		return files
	}

	table := lastMember(lastMember(gjson.ParseBytes(line), "vfs"), "files")
	if !table.IsObject() {
		logger.Debug("Handshake has no %s object, no virtual files", filesPath)
		return files
	}

	skipped := 0
	table.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.String {
			skipped++
			logger.Trace("Skipping %q: value is %s, not a string", key.String(), value.Type)
			return true
		}
		data, err := base64.StdEncoding.DecodeString(stripSpace(value.Str))
		if err != nil {
			skipped++
			logger.Trace("Skipping %q: %v", key.String(), err)
			return true
		}
		files[vfs.Normalize(key.String())] = data
		return true
	})

	logger.Debug("Handshake declared %d virtual files (%d skipped)", len(files), skipped)
	return files
}

// lastMember returns the value of the last key member of obj. gjson's Get
// stops at the first match, but a repeated key overrides earlier ones.
func lastMember(obj gjson.Result, key string) gjson.Result {
	var found gjson.Result
	if !obj.IsObject() {
		return found
	}
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			found = v
		}
		return true
	})
	return found
}

func stripSpace(s string) string {
	if !strings.ContainsAny(s, base64Space) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(base64Space, r) {
			return -1
		}
		return r
	}, s)
}

// Encode renders files as a newline-terminated handshake line.
func Encode(files map[string][]byte) ([]byte, error) {
	payload := Payload{VFS: VFS{Files: make(map[string]string, len(files))}}
	for path, data := range files {
		payload.VFS.Files[path] = base64.StdEncoding.EncodeToString(data)
	}

	line, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode handshake: %w", err)
	}
	return append(line, '\n'), nil
}

func readLine(r io.Reader) ([]byte, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}

	var line bytes.Buffer
	for {
		c, err := br.ReadByte()
		if err != nil {
			if err == io.EOF {
				return line.Bytes(), nil
			}
			return line.Bytes(), err
		}
		if c == '\n' {
			return line.Bytes(), nil
		}
		line.WriteByte(c)
	}
}
