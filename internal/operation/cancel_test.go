package operation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tejashwikalptaru/playqueue/internal/domain"
)

func TestCancelToken(t *testing.T) {
	tok := NewCancelToken("import")
	assert.Equal(t, "import", tok.Operation())
	assert.NoError(t, tok.CheckForCanceled())

	assert.True(t, tok.Cancel())
	assert.False(t, tok.Cancel(), "second cancel is a no-op")
	assert.True(t, tok.IsCanceled())

	err := tok.CheckForCanceled()
	assert.ErrorIs(t, err, domain.ErrCanceled)
	assert.True(t, IsCanceled(err))
	assert.Contains(t, err.Error(), "import")

	tok.Reset()
	assert.NoError(t, tok.CheckForCanceled())
}
