package core

import (
	"hash"
	"io"
)

// DigestReader hashes everything read through it.
type DigestReader struct {
	io.Reader
	hash.Hash
}

func NewDigestReader(source io.Reader, target hash.Hash) *DigestReader {
	return &DigestReader{Reader: source, Hash: target}
}

func (this *DigestReader) Read(buffer []byte) (int, error) {
	count, err := this.Reader.Read(buffer)
	_, _ = this.Hash.Write(buffer[0:count])
	return count, err
}
