package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSysDir(t *testing.T) {
	t.Run("env override wins", func(t *testing.T) {
		t.Setenv("TYPEDAI_SYS_DIR", "/tmp/typedai-test")
		assert.Equal(t, "/tmp/typedai-test", SysDir())
	})

	t.Run("defaults under home", func(t *testing.T) {
		t.Setenv("TYPEDAI_SYS_DIR", "")
		dir := SysDir()
		assert.True(t, filepath.IsAbs(dir) || dir == ".typedai")
		assert.Contains(t, dir, ".typedai")
	})
}

func TestAgentDir(t *testing.T) {
	t.Setenv("TYPEDAI_SYS_DIR", t.TempDir())

	dir, err := AgentDir("agent-123")
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "agent-123", filepath.Base(dir))
}

func TestInDir(t *testing.T) {
	orig, err := os.Getwd()
	require.NoError(t, err)
	target := t.TempDir()

	t.Run("restores cwd on success", func(t *testing.T) {
		err := InDir(target, func() error {
			wd, err := os.Getwd()
			require.NoError(t, err)
			// TempDir may resolve through symlinks on some platforms.
			assert.Equal(t, filepath.Base(target), filepath.Base(wd))
			return nil
		})
		require.NoError(t, err)

		wd, err := os.Getwd()
		require.NoError(t, err)
		assert.Equal(t, orig, wd)
	})

	t.Run("restores cwd on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := InDir(target, func() error { return boom })
		assert.ErrorIs(t, err, boom)

		wd, err := os.Getwd()
		require.NoError(t, err)
		assert.Equal(t, orig, wd)
	})

	t.Run("missing dir fails without changing cwd", func(t *testing.T) {
		err := InDir(filepath.Join(target, "nope"), func() error { return nil })
		assert.Error(t, err)

		wd, err := os.Getwd()
		require.NoError(t, err)
		assert.Equal(t, orig, wd)
	})
}

func TestGitRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	got, err := GitRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, got)

	t.Run("cached on second lookup", func(t *testing.T) {
		again, err := GitRoot(nested)
		require.NoError(t, err)
		assert.Equal(t, got, again)
	})

	t.Run("no repository above", func(t *testing.T) {
		_, err := GitRoot(t.TempDir())
		assert.Error(t, err)
	})
}

func TestSafePathSegment(t *testing.T) {
	assert.Equal(t, "group_sub_proj", SafePathSegment("group/sub/proj"))
	assert.Equal(t, "name-1.2_ok", SafePathSegment("name-1.2_ok"))
}
