package core

import (
	"crypto/md5"
	"io"
	"strings"
	"testing"

	"github.com/smartystreets/assertions/should"
	"github.com/smartystreets/gunit"
)

func TestDigestReaderFixture(t *testing.T) {
	gunit.Run(new(DigestReaderFixture), t)
}

type DigestReaderFixture struct {
	*gunit.Fixture
}

func (this *DigestReaderFixture) Test() {
	stuff := strings.Repeat("Hello, World!", 1024)
	expected := md5.New()
	expected.Write([]byte(stuff))
	data := strings.NewReader(stuff)
	hasher := md5.New()

	_, _ = io.ReadAll(NewDigestReader(data, hasher))

	this.So(hasher.Sum(nil), should.Resemble, expected.Sum(nil))
}
