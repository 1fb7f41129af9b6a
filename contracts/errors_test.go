package contracts

import (
	"errors"
	"fmt"
	"testing"

	"github.com/smartystreets/assertions/should"
	"github.com/smartystreets/gunit"
)

func TestErrorsFixture(t *testing.T) {
	gunit.Run(new(ErrorsFixture), t)
}

type ErrorsFixture struct {
	*gunit.Fixture
}

func (this *ErrorsFixture) TestSecurityRejectionClassification() {
	for _, security := range []error{
		ErrPathTraversal, ErrUnsafeEntryName, ErrUnsafeTarget, ErrInsecureTransport,
	} {
		this.So(IsSecurityRejection(fmt.Errorf("%w: detail", security)), should.BeTrue)
	}
	for _, ordinary := range []error{
		ErrNetworkFailure, ErrDownloadTooLarge, ErrCorruptArchive,
		ErrAlreadyInstalled, ErrMissingRequiredPaths, ErrInstallationFailed, ErrCancelled,
	} {
		this.So(IsSecurityRejection(ordinary), should.BeFalse)
	}
}

func (this *ErrorsFixture) TestMissingPathsErrorCarriesTheCompleteList() {
	err := &MissingPathsError{Missing: []string{"commands", "settings.json"}}

	this.So(errors.Is(err, ErrMissingRequiredPaths), should.BeTrue)
	this.So(err.Error(), should.ContainSubstring, "commands")
	this.So(err.Error(), should.ContainSubstring, "settings.json")
}

func (this *ErrorsFixture) TestCommitErrorReportsRollbackOutcome() {
	cause := errors.New("device unplugged")
	rolledBack := &CommitError{RolledBack: true, Cause: cause}
	abandoned := &CommitError{RolledBack: false, Cause: cause}

	this.So(errors.Is(rolledBack, ErrInstallationFailed), should.BeTrue)
	this.So(rolledBack.Error(), should.ContainSubstring, "restored")
	this.So(abandoned.Error(), should.ContainSubstring, "NOT restored")
}
