package luaconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxhq/emmylua-core/config"
	"github.com/oxhq/emmylua-core/diagnostics"
	"github.com/oxhq/emmylua-core/driver"
	"github.com/oxhq/emmylua-core/vfs"
)

func buildModel(t *testing.T, src string) *diagnostics.Context {
	t.Helper()
	d := driver.New(config.Default())
	batch := d.AddOrUpdateFiles(context.Background(), []vfs.Change{{URI: "file:///a.lua", Text: &src}})
	require.Len(t, batch.Updated, 1)
	file := batch.Updated[0]
	model, ok := d.SemanticModel(file)
	require.True(t, ok)
	tree, ok := d.Tree(file)
	require.True(t, ok)
	return &diagnostics.Context{Model: model, Tree: tree}
}

const itemConfigSrc = `
---@class ConfigTable
---@class Bean

---@class TbItemBean : Bean
---@field id int
---@field name string

---@[t.index("id")]
---@class TbItem : ConfigTable
---@field [int] TbItemBean

---@type TbItem
local items = {
  { id = 1, name = "sword" },
  { id = 2, name = "shield" },
}
`

func TestIsConfigTableAndBean(t *testing.T) {
	ctx := buildModel(t, itemConfigSrc)
	require.True(t, IsConfigTable(ctx.Model.TypeIx, "TbItem"))
	require.True(t, IsConfigTable(ctx.Model.TypeIx, "ConfigTable"))
	require.False(t, IsConfigTable(ctx.Model.TypeIx, "TbItemBean"))
	require.True(t, IsBean(ctx.Model.TypeIx, "TbItemBean"))
}

func TestRowType(t *testing.T) {
	ctx := buildModel(t, itemConfigSrc)
	rowId, ok := RowType(ctx.Model.TypeIx, "TbItem")
	require.True(t, ok)
	require.Equal(t, "TbItemBean", string(rowId))
}

func TestDiscoverFindsLiteral(t *testing.T) {
	ctx := buildModel(t, itemConfigSrc)
	lits := Discover(ctx.Tree.Root, ctx.Model.TypeIx)
	require.Len(t, lits, 1)
	require.Equal(t, "TbItem", string(lits[0].TableId))
	require.Equal(t, "TbItemBean", string(lits[0].RowId))
	require.Len(t, Rows(lits[0].Table), 2)
}

func TestDuplicatePrimaryKeyChecker(t *testing.T) {
	src := `
---@class ConfigTable
---@class Bean
---@class TbItemBean : Bean
---@field id int
---@field name string

---@[t.index("id")]
---@class TbItem : ConfigTable
---@field [int] TbItemBean

---@type TbItem
local items = {
  { id = 1, name = "sword" },
  { id = 1, name = "duplicate" },
}
`
	ctx := buildModel(t, src)
	ds := (&duplicatePrimaryKeyChecker{}).Check(ctx)
	require.Len(t, ds, 1)
	require.Contains(t, ds[0].Message, "duplicate primary key")
}

func TestInvalidIndexFieldChecker(t *testing.T) {
	src := `
---@class ConfigTable
---@class Bean
---@class TbItemBean : Bean
---@field name string

---@[t.index("missingField")]
---@class TbItem : ConfigTable
---@field [int] TbItemBean

---@type TbItem
local items = {
  { name = "sword" },
}
`
	ctx := buildModel(t, src)
	ds := (&invalidIndexFieldChecker{}).Check(ctx)
	require.Len(t, ds, 1)
	require.Contains(t, ds[0].Message, "missingField")
}

func TestInvalidRefChecker(t *testing.T) {
	src := `
---@class ConfigTable
---@class Bean

---@class TbMatBean : Bean
---@field id int

---@[t.index("id")]
---@class TbMaterial : ConfigTable
---@field [int] TbMatBean

---@class TbItemBean : Bean
---@field id int
---@[v.ref("TbMaterial")]
---@field matId int

---@[t.index("id")]
---@class TbItem : ConfigTable
---@field [int] TbItemBean

---@type TbMaterial
local materials = {
  { id = 100 },
}

---@type TbItem
local items = {
  { id = 1, matId = 999 },
}
`
	ctx := buildModel(t, src)
	ds := (&invalidRefChecker{}).Check(ctx)
	require.Len(t, ds, 1)
	require.Contains(t, ds[0].Message, "999")
}

func TestDuplicateIndexValueChecker(t *testing.T) {
	src := `
---@class ConfigTable
---@class Bean
---@class TbItemBean : Bean
---@field id int

---@[t.index("id")]
---@class TbItem : ConfigTable
---@field [int] TbItemBean

---@type TbItem
local items = {
  [1] = { id = 1 },
  [1] = { id = 2 },
}
`
	ctx := buildModel(t, src)
	ds := (&duplicateIndexValueChecker{}).Check(ctx)
	require.Len(t, ds, 1)
}

func TestInvalidFlagsEnumValueChecker(t *testing.T) {
	src := `
---@[flags]
---@enum Perm
local Perm = {
  Read = 1,
  Write = 2,
  Exec = 3,
}
`
	ctx := buildModel(t, src)
	ds := (&invalidFlagsEnumValueChecker{}).Check(ctx)
	require.Len(t, ds, 1)
	require.Contains(t, ds[0].Message, "Exec")
}

func TestInvalidFlagsEnumValueCheckerAllowsZeroAndPowersOfTwo(t *testing.T) {
	src := `
---@[flags]
---@enum Perm
local Perm = {
  None = 0,
  Read = 1,
  Write = 2,
  Both = 4,
}
`
	ctx := buildModel(t, src)
	ds := (&invalidFlagsEnumValueChecker{}).Check(ctx)
	require.Empty(t, ds)
}

func TestRegisterCheckersAddsAllFive(t *testing.T) {
	reg := diagnostics.NewRegistry()
	RegisterCheckers(reg)
	for _, code := range []string{
		"duplicate-primary-key",
		"invalid-index-field",
		"invalid-ref",
		"duplicate-index-value",
		"invalid-flags-enum-value",
		"invalid-range-signature",
		"invalid-range-value",
		"invalid-set-signature",
		"invalid-set-value",
		"duplicate-set-element",
		"invalid-size-signature",
		"invalid-size-value",
	} {
		_, ok := reg.Get(code)
		require.True(t, ok, "expected %s to be registered", code)
	}
}

const rangedItemConfigSrc = `
---@class ConfigTable
---@class Bean
---@class TbItemBean : Bean
---@field id int
---@[v.range(1, 10)]
---@field level int

---@[t.index("id")]
---@class TbItem : ConfigTable
---@field [int] TbItemBean

---@type TbItem
local items = {
  { id = 1, level = 5 },
}
`

func TestInvalidRangeSignatureChecker(t *testing.T) {
	src := `
---@class ConfigTable
---@class Bean
---@class TbItemBean : Bean
---@field id int
---@[v.range(10, 1)]
---@field level int

---@[t.index("id")]
---@class TbItem : ConfigTable
---@field [int] TbItemBean

---@type TbItem
local items = {
  { id = 1, level = 5 },
}
`
	ctx := buildModel(t, src)
	ds := (&invalidRangeSignatureChecker{}).Check(ctx)
	require.Len(t, ds, 1)
}

func TestInvalidRangeSignatureCheckerAllowsValidSpec(t *testing.T) {
	ctx := buildModel(t, rangedItemConfigSrc)
	ds := (&invalidRangeSignatureChecker{}).Check(ctx)
	require.Empty(t, ds)
}

func TestInvalidRangeValueChecker(t *testing.T) {
	src := `
---@class ConfigTable
---@class Bean
---@class TbItemBean : Bean
---@field id int
---@[v.range(1, 10)]
---@field level int

---@[t.index("id")]
---@class TbItem : ConfigTable
---@field [int] TbItemBean

---@type TbItem
local items = {
  { id = 1, level = 99 },
}
`
	ctx := buildModel(t, src)
	ds := (&invalidRangeValueChecker{}).Check(ctx)
	require.Len(t, ds, 1)
	require.Contains(t, ds[0].Message, "99")
}

func TestInvalidRangeValueCheckerAllowsInBoundsValue(t *testing.T) {
	ctx := buildModel(t, rangedItemConfigSrc)
	ds := (&invalidRangeValueChecker{}).Check(ctx)
	require.Empty(t, ds)
}

const setItemConfigSrc = `
---@class ConfigTable
---@class Bean
---@class TbItemBean : Bean
---@field id int
---@[v.set(1, 2, 3)]
---@field rarity int

---@[t.index("id")]
---@class TbItem : ConfigTable
---@field [int] TbItemBean

---@type TbItem
local items = {
  { id = 1, rarity = 2 },
}
`

func TestInvalidSetSignatureChecker(t *testing.T) {
	src := `
---@class ConfigTable
---@class Bean
---@class TbItemBean : Bean
---@field id int
---@[v.set()]
---@field rarity int

---@[t.index("id")]
---@class TbItem : ConfigTable
---@field [int] TbItemBean

---@type TbItem
local items = {
  { id = 1, rarity = 2 },
}
`
	ctx := buildModel(t, src)
	ds := (&invalidSetSignatureChecker{}).Check(ctx)
	require.Len(t, ds, 1)
}

func TestInvalidSetSignatureCheckerAllowsValidSpec(t *testing.T) {
	ctx := buildModel(t, setItemConfigSrc)
	ds := (&invalidSetSignatureChecker{}).Check(ctx)
	require.Empty(t, ds)
}

func TestInvalidSetValueChecker(t *testing.T) {
	src := `
---@class ConfigTable
---@class Bean
---@class TbItemBean : Bean
---@field id int
---@[v.set(1, 2, 3)]
---@field rarity int

---@[t.index("id")]
---@class TbItem : ConfigTable
---@field [int] TbItemBean

---@type TbItem
local items = {
  { id = 1, rarity = 9 },
}
`
	ctx := buildModel(t, src)
	ds := (&invalidSetValueChecker{}).Check(ctx)
	require.Len(t, ds, 1)
	require.Contains(t, ds[0].Message, "9")
}

func TestInvalidSetValueCheckerAllowsMember(t *testing.T) {
	ctx := buildModel(t, setItemConfigSrc)
	ds := (&invalidSetValueChecker{}).Check(ctx)
	require.Empty(t, ds)
}

func TestDuplicateSetElementChecker(t *testing.T) {
	src := `
---@class ConfigTable
---@class Bean
---@class TbItemBean : Bean
---@field id int
---@[v.set(1, 2, 2)]
---@field rarity int

---@[t.index("id")]
---@class TbItem : ConfigTable
---@field [int] TbItemBean

---@type TbItem
local items = {
  { id = 1, rarity = 2 },
}
`
	ctx := buildModel(t, src)
	ds := (&duplicateSetElementChecker{}).Check(ctx)
	require.Len(t, ds, 1)
	require.Contains(t, ds[0].Message, "2")
}

func TestDuplicateSetElementCheckerAllowsDistinctValues(t *testing.T) {
	ctx := buildModel(t, setItemConfigSrc)
	ds := (&duplicateSetElementChecker{}).Check(ctx)
	require.Empty(t, ds)
}

const sizedItemConfigSrc = `
---@class ConfigTable
---@class Bean
---@class TbItemBean : Bean
---@field id int
---@[v.size(1, 3)]
---@field tags table

---@[t.index("id")]
---@class TbItem : ConfigTable
---@field [int] TbItemBean

---@type TbItem
local items = {
  { id = 1, tags = { "a", "b" } },
}
`

func TestInvalidSizeSignatureChecker(t *testing.T) {
	src := `
---@class ConfigTable
---@class Bean
---@class TbItemBean : Bean
---@field id int
---@[v.size(-1)]
---@field tags table

---@[t.index("id")]
---@class TbItem : ConfigTable
---@field [int] TbItemBean

---@type TbItem
local items = {
  { id = 1, tags = { "a" } },
}
`
	ctx := buildModel(t, src)
	ds := (&invalidSizeSignatureChecker{}).Check(ctx)
	require.Len(t, ds, 1)
}

func TestInvalidSizeSignatureCheckerAllowsValidSpec(t *testing.T) {
	ctx := buildModel(t, sizedItemConfigSrc)
	ds := (&invalidSizeSignatureChecker{}).Check(ctx)
	require.Empty(t, ds)
}

func TestInvalidSizeValueChecker(t *testing.T) {
	src := `
---@class ConfigTable
---@class Bean
---@class TbItemBean : Bean
---@field id int
---@[v.size(1, 3)]
---@field tags table

---@[t.index("id")]
---@class TbItem : ConfigTable
---@field [int] TbItemBean

---@type TbItem
local items = {
  { id = 1, tags = { "a", "b", "c", "d" } },
}
`
	ctx := buildModel(t, src)
	ds := (&invalidSizeValueChecker{}).Check(ctx)
	require.Len(t, ds, 1)
}

func TestInvalidSizeValueCheckerAllowsInBoundsCount(t *testing.T) {
	ctx := buildModel(t, sizedItemConfigSrc)
	ds := (&invalidSizeValueChecker{}).Check(ctx)
	require.Empty(t, ds)
}
