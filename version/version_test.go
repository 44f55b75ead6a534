package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionIncludesGitCommit(t *testing.T) {
	orig := GitCommit
	defer func() { GitCommit = orig }()

	GitCommit = "deadbeef"
	v := ICPRelaySemVer
	if GitCommit != "" {
		v += "-" + GitCommit
	}
	assert.True(t, strings.HasSuffix(v, "deadbeef"))
}

func TestProtocolUint64(t *testing.T) {
	assert.Equal(t, uint64(1), SessionProtocol.Uint64())
	assert.Equal(t, uint64(1), ChannelProtocol.Uint64())
}
