package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitExtraArgs(t *testing.T) {
	t.Run("empty input yields no args", func(t *testing.T) {
		args, err := SplitExtraArgs("   ")
		assert.NoError(t, err)
		assert.Nil(t, args)
	})

	t.Run("splits quoted tokens", func(t *testing.T) {
		args, err := SplitExtraArgs(`-preset medium -crf 23 -movflags "+faststart"`)
		assert.NoError(t, err)
		assert.Equal(t, []string{"-preset", "medium", "-crf", "23", "-movflags", "+faststart"}, args)
	})

	t.Run("rejects shell metacharacters", func(t *testing.T) {
		_, err := SplitExtraArgs("-preset medium; rm -rf /")
		assert.Error(t, err)
	})

	t.Run("rejects unbalanced quotes", func(t *testing.T) {
		_, err := SplitExtraArgs(`-metadata title="broken`)
		assert.Error(t, err)
	})
}
