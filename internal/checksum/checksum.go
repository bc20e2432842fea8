// Package checksum computes content digests of files.
package checksum

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"

	"github.com/ubuntu/decorate"
)

// bufferSize is the size of the blocks the file is read in.
const bufferSize = 4096

// File returns the lower case hexadecimal MD5 digest of the file at path.
// The digest only depends on the file content.
func File(path string) (sum string, err error) {
	defer decorate.OnError(&err, "could not compute checksum of %q", path)

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return Reader(f)
}

// Reader returns the lower case hexadecimal MD5 digest of everything read from r.
func Reader(r io.Reader) (string, error) {
	h := md5.New()
	if _, err := io.CopyBuffer(h, r, make([]byte, bufferSize)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
