package artifacts

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromote_ReportsRenameError(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := &Writer{FS: fs}

	// Neither the staged file nor the destination exists, so the
	// remove fallback cannot apply. The rename error is the
	// informative one and must not be masked by the remove error.
	err := w.promote("missing.tmp", "missing.json")

	require.Error(t, err)
	assert.ErrorContains(t, err, "rename")
	assert.NotContains(t, err.Error(), "remove")
}
