package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/bluewing/internal/config"
	"github.com/1ureka/bluewing/internal/payload"
)

func TestLockTraceNamesHolder(t *testing.T) {
	cfg := config.DefaultClient()
	cfg.DebugLocks = true
	s := New(cfg, &recorder{})

	var holder string
	require.NoError(t, s.Compose(func(*payload.Builder) error {
		holder = s.lock.holder
		return nil
	}))
	assert.Regexp(t, `^Compose binary\.go:\d+$`, holder)

	s.lock.Lock()
	holder = s.lock.holder
	s.lock.Unlock()
	assert.Regexp(t, `^TestLockTraceNamesHolder lock_test\.go:\d+$`, holder)
	assert.Empty(t, s.lock.holder)
}
