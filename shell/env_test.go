package shell

import (
	"os"
	"testing"

	"github.com/smartystreets/assertions/should"
	"github.com/smartystreets/gunit"
)

func TestEnvironmentFixture(t *testing.T) {
	gunit.Run(new(EnvironmentFixture), t)
}

type EnvironmentFixture struct {
	*gunit.Fixture
	environment *Environment
}

func (this *EnvironmentFixture) Setup() {
	this.environment = NewEnvironment()
	this.So(os.Setenv("EMPLACE_TEST_KEY", "set-value"), should.BeNil)
	this.So(os.Setenv("EMPLACE_TEST_EMPTY", ""), should.BeNil)
}

func (this *EnvironmentFixture) Teardown() {
	_ = os.Unsetenv("EMPLACE_TEST_KEY")
	_ = os.Unsetenv("EMPLACE_TEST_EMPTY")
}

func (this *EnvironmentFixture) TestLookupDefault() {
	this.So(this.environment.LookupDefault("EMPLACE_TEST_KEY", "fallback"), should.Equal, "set-value")
	this.So(this.environment.LookupDefault("EMPLACE_TEST_MISSING", "fallback"), should.Equal, "fallback")
	this.So(this.environment.LookupDefault("EMPLACE_TEST_EMPTY", "fallback"), should.BeBlank)
}
