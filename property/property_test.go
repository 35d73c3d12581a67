package property

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultPropertyIsPublic(t *testing.T) {
	ix := NewIndex()
	p := ix.Get(SemanticId{Kind: IdDecl, Local: 1})
	require.Equal(t, Public, p.Visibility)
	require.Equal(t, NotDeprecated, p.Deprecation)
}

func TestSetDeprecatedWithMessage(t *testing.T) {
	ix := NewIndex()
	id := SemanticId{Kind: IdTypeDecl, Named: "Player"}
	ix.SetDeprecated(id, "use NewPlayer instead")

	p := ix.Get(id)
	require.Equal(t, DeprecatedWithMessage, p.Deprecation)
	require.Equal(t, "use NewPlayer instead", p.DeprecationMsg)
}

func TestAttributeUsesAccumulate(t *testing.T) {
	ix := NewIndex()
	id := SemanticId{Kind: IdMember, Named: "health"}
	ix.AddAttributeUse(id, AttributeUse{Name: "serialize"})
	ix.AddAttributeUse(id, AttributeUse{Name: "range", Args: []AttributeArg{{Name: "min"}}})

	p := ix.Get(id)
	require.Len(t, p.AttributeUses, 2)
}

func TestRemoveIds(t *testing.T) {
	ix := NewIndex()
	id := SemanticId{Kind: IdDecl, Local: 7}
	ix.SetReadOnly(id)
	ix.RemoveIds([]SemanticId{id})

	p := ix.Get(id)
	require.False(t, p.Features.ReadOnly)
}
