package module

import (
	"testing"

	"github.com/oxhq/emmylua-core/types"
	"github.com/oxhq/emmylua-core/vfs"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndResolve(t *testing.T) {
	ix := NewIndex()
	ix.Register("mygame.player", vfs.FileId(1), types.Ref("Player"), false)

	e, ok := ix.Resolve("mygame.player")
	require.True(t, ok)
	require.Equal(t, vfs.FileId(1), e.File)
}

func TestRemoveFileDropsPaths(t *testing.T) {
	ix := NewIndex()
	ix.Register("a.b", vfs.FileId(1), nil, false)
	ix.Register("a.c", vfs.FileId(1), nil, false)
	ix.RemoveFile(vfs.FileId(1))

	_, ok := ix.Resolve("a.b")
	require.False(t, ok)
	require.Empty(t, ix.PathsForFile(vfs.FileId(1)))
}

func TestFromFilePath(t *testing.T) {
	require.Equal(t, Path("mygame.entities.player"), FromFilePath("mygame/entities/player.lua"))
	require.Equal(t, Path("mygame.entities"), FromFilePath("mygame/entities/init.lua"))
}
