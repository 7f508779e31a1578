package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompanyFromChannel(t *testing.T) {
	id, ok := companyFromChannel("monitoring:11:live")
	assert.True(t, ok)
	assert.Equal(t, int64(11), id)

	for _, channel := range []string{"monitoring:live", "monitoring:x:live", "other"} {
		_, ok := companyFromChannel(channel)
		assert.False(t, ok, "channel %q", channel)
	}
}
