package types

import (
	"testing"

	"github.com/oxhq/emmylua-core/vfs"
	"github.com/stretchr/testify/require"
)

func TestUnionAnyAnnihilates(t *testing.T) {
	u := Union(String(), Any(), Integer())
	require.Equal(t, KAny, u.Kind)
}

func TestUnionNeverAbsorbed(t *testing.T) {
	u := Union(Never(), String())
	require.Equal(t, KString, u.Kind)
}

func TestUnionConstAbsorbedByPrimitive(t *testing.T) {
	u := Union(Integer(), IntConst(3))
	require.Equal(t, KInteger, u.Kind)

	u2 := Union(StrConst("a"), String())
	require.Equal(t, KString, u2.Kind)
}

func TestUnionBooleanConstCollapse(t *testing.T) {
	u := Union(BoolConst(true), BoolConst(true))
	require.Equal(t, KBooleanConst, u.Kind)
	require.True(t, u.BoolVal)

	u2 := Union(BoolConst(true), BoolConst(false))
	require.Equal(t, KBoolean, u2.Kind)
}

func TestUnionFlattensNested(t *testing.T) {
	inner := Union(String(), Integer())
	u := Union(inner, Boolean())
	require.Equal(t, KUnion, u.Kind)
	require.Len(t, u.Elems, 3)
}

func TestUnionDedupesRefsByDeclId(t *testing.T) {
	u := Union(Ref("a.Player"), Ref("a.Player"))
	require.Equal(t, KRef, u.Kind)
}

func TestSubtractSameConstWidens(t *testing.T) {
	s := Subtract(IntConst(5), IntConst(5), nil)
	require.Equal(t, KInteger, s.Kind)
}

func TestSubtractBaseRemovesConstants(t *testing.T) {
	u := Union(String(), IntConst(1))
	s := Subtract(u, Integer(), nil)
	require.Equal(t, KString, s.Kind)
}

func TestSubtypePrimitives(t *testing.T) {
	require.True(t, Subtype(IntConst(3), Integer(), nil))
	require.False(t, Subtype(Integer(), IntConst(3), nil))
	require.True(t, Subtype(Never(), String(), nil))
	require.True(t, Subtype(String(), Any(), nil))
}

func TestSubtypeNominal(t *testing.T) {
	resolve := func(id TypeDeclId) *TypeDecl {
		if id == "Dog" {
			return &TypeDecl{Id: "Dog", Supers: []TypeDeclId{"Animal"}}
		}
		return nil
	}
	require.True(t, Subtype(Ref("Dog"), Ref("Animal"), resolve))
	require.False(t, Subtype(Ref("Animal"), Ref("Dog"), resolve))
}

func TestTypeDeclIndexMergeAcrossFiles(t *testing.T) {
	ix := NewIndex()
	ix.RegisterClass("Player", vfs.FileId(1), nil, []TypeDeclId{"Entity"})
	ix.SetField("Player", StringKey("name"), String(), false)
	ix.RegisterClass("Player", vfs.FileId(2), nil, []TypeDeclId{"Serializable"})
	ix.SetField("Player", StringKey("health"), Integer(), false)

	d := ix.Resolve("Player")
	require.NotNil(t, d)
	require.Len(t, d.Supers, 2)
	require.Len(t, d.Fields, 2)
	require.Len(t, d.Files, 2)
}

func TestTypeDeclRemoveFileDropsOrphan(t *testing.T) {
	ix := NewIndex()
	ix.RegisterClass("Local", vfs.FileId(1), nil, nil)
	ix.RemoveFile(vfs.FileId(1))
	require.Nil(t, ix.Resolve("Local"))
}

func TestUnfoldAliasCycleIsAny(t *testing.T) {
	resolve := func(id TypeDeclId) *TypeDecl {
		switch id {
		case "A":
			return &TypeDecl{Id: "A", Kind: DeclAlias, AliasOf: Ref("B")}
		case "B":
			return &TypeDecl{Id: "B", Kind: DeclAlias, AliasOf: Ref("A")}
		}
		return nil
	}
	result := UnfoldAlias(Ref("A"), resolve)
	require.Equal(t, KAny, result.Kind)
}
