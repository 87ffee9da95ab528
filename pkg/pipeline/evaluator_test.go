package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchbay-dev/patchbay/pkg/imagestore"
	"github.com/patchbay-dev/patchbay/pkg/models"
	"github.com/patchbay-dev/patchbay/pkg/store"
)

// fixture wires an in-memory store, a temp image tree, and the pipeline
// components under test.
type fixture struct {
	st     *store.GORMStore
	images *imagestore.Store
	eval   *Evaluator
	inv    *Invalidator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	images := imagestore.New(t.TempDir())
	require.NoError(t, images.EnsureLayout())

	return &fixture{
		st:     st,
		images: images,
		eval:   NewEvaluator(st, images, nil),
		inv:    NewInvalidator(st, images, nil),
	}
}

// addType inserts a catalogue entry. Terminal types carry a NULL outputs
// column.
func (f *fixture) addType(t *testing.T, bt *models.BlockType) uint {
	t.Helper()
	require.NoError(t, f.st.CreateBlockType(context.Background(), bt))
	return bt.ID
}

// addBlock inserts a block instance into project 1.
func (f *fixture) addBlock(t *testing.T, b *models.BlockInstance) uint {
	t.Helper()
	if b.IDProject == 0 {
		b.IDProject = 1
	}
	require.NoError(t, f.st.CreateBlock(context.Background(), b))
	return b.ID
}

// addUpload writes an original image into the store root and records it.
func (f *fixture) addUpload(t *testing.T, filename, content string) string {
	t.Helper()
	u := uuid.NewString()
	_, err := f.images.SaveUpload(strings.NewReader(content), u, filename)
	require.NoError(t, err)
	require.NoError(t, f.st.CreateInputImage(context.Background(), &models.InputImage{
		UUID:             u,
		OriginalFilename: filename,
	}))
	return u
}

func (f *fixture) cacheRowCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.st.DB().Model(&models.CacheEntry{}).Count(&n).Error)
	return n
}

// copyScript returns a command that copies its first input to the output,
// appending a line to counterFile per invocation.
func copyScript(t *testing.T, counterFile string) string {
	t.Helper()
	return writeScript(t, fmt.Sprintf("echo run >> %q\ncp \"$2\" \"$3\"", counterFile))
}

func countRuns(t *testing.T, counterFile string) int {
	t.Helper()
	data, err := os.ReadFile(counterFile)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	n := 0
	for _, b := range data {
		if b == '\n' {
			n++
		}
	}
	return n
}

func TestResultOfPassThroughKinds(t *testing.T) {
	t.Run("InputReturnsInitialUUID", func(t *testing.T) {
		f := newFixture(t)
		inputType := f.addType(t, &models.BlockType{Name: models.BlockNameInput, Outputs: strPtr(`["image"]`)})
		input := f.addBlock(t, &models.BlockInstance{IDBlock: inputType})

		u := f.addUpload(t, "a.png", "pixels")
		out, err := f.eval.ResultOf(context.Background(), input, u)
		require.NoError(t, err)
		assert.Equal(t, u, out)
	})

	t.Run("ImagePreviewPassesThroughSingleInput", func(t *testing.T) {
		f := newFixture(t)
		inputType := f.addType(t, &models.BlockType{Name: models.BlockNameInput, Outputs: strPtr(`["image"]`)})
		previewType := f.addType(t, &models.BlockType{Name: models.BlockNameImagePreview})
		input := f.addBlock(t, &models.BlockInstance{IDBlock: inputType})
		preview := f.addBlock(t, &models.BlockInstance{
			IDBlock:     previewType,
			Connections: fmt.Sprintf(`{"image":%d}`, input),
		})

		u := f.addUpload(t, "a.png", "pixels")
		out, err := f.eval.ResultOf(context.Background(), preview, u)
		require.NoError(t, err)
		assert.Equal(t, u, out)
		assert.Zero(t, f.cacheRowCount(t), "pass-through blocks must not write cache rows")
	})

	t.Run("ImagePreviewRejectsWrongArity", func(t *testing.T) {
		f := newFixture(t)
		inputType := f.addType(t, &models.BlockType{Name: models.BlockNameInput, Outputs: strPtr(`["image"]`)})
		previewType := f.addType(t, &models.BlockType{Name: models.BlockNameImagePreview})
		a := f.addBlock(t, &models.BlockInstance{IDBlock: inputType})
		b := f.addBlock(t, &models.BlockInstance{IDBlock: inputType})
		preview := f.addBlock(t, &models.BlockInstance{
			IDBlock:     previewType,
			Connections: fmt.Sprintf(`{"left":%d,"right":%d}`, a, b),
		})

		_, err := f.eval.ResultOf(context.Background(), preview, uuid.NewString())
		assert.ErrorIs(t, err, models.ErrBadArity)
	})

	t.Run("LoadImageResolvesFilename", func(t *testing.T) {
		f := newFixture(t)
		loadType := f.addType(t, &models.BlockType{Name: models.BlockNameLoadImage, Outputs: strPtr(`["image"]`)})
		load := f.addBlock(t, &models.BlockInstance{
			IDBlock:     loadType,
			OutputValue: `{"filename":"sunset.png"}`,
		})

		u := f.addUpload(t, "sunset.png", "pixels")
		out, err := f.eval.ResultOf(context.Background(), load, uuid.NewString())
		require.NoError(t, err)
		assert.Equal(t, u, out)
	})

	t.Run("LoadImageUnknownFilenameFails", func(t *testing.T) {
		f := newFixture(t)
		loadType := f.addType(t, &models.BlockType{Name: models.BlockNameLoadImage, Outputs: strPtr(`["image"]`)})
		load := f.addBlock(t, &models.BlockInstance{
			IDBlock:     loadType,
			OutputValue: `{"filename":"nope.png"}`,
		})

		_, err := f.eval.ResultOf(context.Background(), load, uuid.NewString())
		assert.ErrorIs(t, err, models.ErrInputImageNotFound)
	})
}

func TestGeneralBlockCaching(t *testing.T) {
	// Input → Invert → Image Preview; the Invert command copies its input.
	setup := func(t *testing.T, f *fixture, counter string) (invert, preview uint) {
		inputType := f.addType(t, &models.BlockType{Name: models.BlockNameInput, Outputs: strPtr(`["image"]`)})
		invertType := f.addType(t, &models.BlockType{
			Name:      "Invert",
			Command:   copyScript(t, counter),
			GUIFields: `[]`,
			Outputs:   strPtr(`["image"]`),
		})
		previewType := f.addType(t, &models.BlockType{Name: models.BlockNameImagePreview})

		input := f.addBlock(t, &models.BlockInstance{IDBlock: inputType})
		invert = f.addBlock(t, &models.BlockInstance{
			IDBlock:     invertType,
			Connections: fmt.Sprintf(`{"image":%d}`, input),
		})
		preview = f.addBlock(t, &models.BlockInstance{
			IDBlock:     previewType,
			Connections: fmt.Sprintf(`{"image":%d}`, invert),
		})
		return invert, preview
	}

	t.Run("MissExecutesThenHitDoesNot", func(t *testing.T) {
		f := newFixture(t)
		counter := f.images.Root() + "/runs"
		_, preview := setup(t, f, counter)
		u := f.addUpload(t, "a.png", "pixels")

		first, err := f.eval.ResultOf(context.Background(), preview, u)
		require.NoError(t, err)
		assert.NotEqual(t, u, first)
		assert.True(t, imagestore.Exists(f.images.CachedPath(first)))
		assert.Equal(t, 1, countRuns(t, counter))
		assert.EqualValues(t, 1, f.cacheRowCount(t))

		second, err := f.eval.ResultOf(context.Background(), preview, u)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, countRuns(t, counter), "cache hit must not spawn a subprocess")
		assert.EqualValues(t, 1, f.cacheRowCount(t))
	})

	t.Run("SelfHealReExecutesAfterFileLoss", func(t *testing.T) {
		f := newFixture(t)
		counter := f.images.Root() + "/runs"
		_, preview := setup(t, f, counter)
		u := f.addUpload(t, "a.png", "pixels")

		first, err := f.eval.ResultOf(context.Background(), preview, u)
		require.NoError(t, err)

		require.NoError(t, os.Remove(f.images.CachedPath(first)))

		second, err := f.eval.ResultOf(context.Background(), preview, u)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
		assert.Equal(t, 2, countRuns(t, counter))

		// The orphaned row is gone; only the fresh one remains.
		assert.EqualValues(t, 1, f.cacheRowCount(t))
		var remaining models.CacheEntry
		require.NoError(t, f.st.DB().First(&remaining).Error)
		assert.Equal(t, second, remaining.UUID)
	})

	t.Run("CacheKeyIsScopedByInput", func(t *testing.T) {
		f := newFixture(t)
		counter := f.images.Root() + "/runs"
		_, preview := setup(t, f, counter)
		a := f.addUpload(t, "a.png", "pixels a")
		b := f.addUpload(t, "b.png", "pixels b")

		outA, err := f.eval.ResultOf(context.Background(), preview, a)
		require.NoError(t, err)
		outB, err := f.eval.ResultOf(context.Background(), preview, b)
		require.NoError(t, err)

		assert.NotEqual(t, outA, outB)
		assert.Equal(t, 2, countRuns(t, counter))
	})

	t.Run("SharedEvaluationMemoizesPerInput", func(t *testing.T) {
		f := newFixture(t)
		counter := f.images.Root() + "/runs"
		_, preview := setup(t, f, counter)
		a := f.addUpload(t, "a.png", "pixels a")
		b := f.addUpload(t, "b.png", "pixels b")

		ev := NewEvaluation()
		outA1, err := f.eval.ResultOfWith(context.Background(), ev, preview, a)
		require.NoError(t, err)
		outB, err := f.eval.ResultOfWith(context.Background(), ev, preview, b)
		require.NoError(t, err)
		outA2, err := f.eval.ResultOfWith(context.Background(), ev, preview, a)
		require.NoError(t, err)

		assert.Equal(t, outA1, outA2)
		assert.NotEqual(t, outA1, outB)
	})
}

func TestDisabledBlocks(t *testing.T) {
	disabled := false

	t.Run("DisabledActsAsFirstInputPassThrough", func(t *testing.T) {
		f := newFixture(t)
		counter := f.images.Root() + "/runs"
		inputType := f.addType(t, &models.BlockType{Name: models.BlockNameInput, Outputs: strPtr(`["image"]`)})
		invertType := f.addType(t, &models.BlockType{
			Name:      "Invert",
			Command:   copyScript(t, counter),
			GUIFields: `[]`,
			Outputs:   strPtr(`["image"]`),
		})

		input := f.addBlock(t, &models.BlockInstance{IDBlock: inputType})
		invert := f.addBlock(t, &models.BlockInstance{
			IDBlock:     invertType,
			Connections: fmt.Sprintf(`{"image":%d}`, input),
			Enabled:     &disabled,
		})

		u := f.addUpload(t, "a.png", "pixels")
		out, err := f.eval.ResultOf(context.Background(), invert, u)
		require.NoError(t, err)
		assert.Equal(t, u, out)
		assert.Equal(t, 0, countRuns(t, counter))
		assert.Zero(t, f.cacheRowCount(t), "disabled pass-through must not touch the cache")
	})

	t.Run("DisabledWithNoInputsFails", func(t *testing.T) {
		f := newFixture(t)
		invertType := f.addType(t, &models.BlockType{Name: "Invert", Outputs: strPtr(`["image"]`)})
		invert := f.addBlock(t, &models.BlockInstance{IDBlock: invertType, Enabled: &disabled})

		_, err := f.eval.ResultOf(context.Background(), invert, uuid.NewString())
		assert.ErrorIs(t, err, models.ErrNoInputs)
	})
}

func TestCycleDetection(t *testing.T) {
	f := newFixture(t)
	invertType := f.addType(t, &models.BlockType{
		Name:      "Invert",
		Command:   "/bin/true",
		GUIFields: `[]`,
		Outputs:   strPtr(`["image"]`),
	})

	a := f.addBlock(t, &models.BlockInstance{IDBlock: invertType})
	b := f.addBlock(t, &models.BlockInstance{
		IDBlock:     invertType,
		Connections: fmt.Sprintf(`{"image":%d}`, a),
	})
	require.NoError(t, f.st.DB().Model(&models.BlockInstance{}).
		Where("id = ?", a).
		Update("connections", fmt.Sprintf(`{"image":%d}`, b)).Error)

	_, err := f.eval.ResultOf(context.Background(), a, uuid.NewString())
	assert.ErrorIs(t, err, models.ErrCycleDetected)
}

func TestBadConfigurationFailsCleanly(t *testing.T) {
	f := newFixture(t)
	inputType := f.addType(t, &models.BlockType{Name: models.BlockNameInput, Outputs: strPtr(`["image"]`)})
	brokenType := f.addType(t, &models.BlockType{
		Name:              "Broken",
		Command:           "/bin/true",
		ParameterTemplate: "%s %s",
		GUIFields:         `["only"]`,
		Outputs:           strPtr(`["image"]`),
	})

	input := f.addBlock(t, &models.BlockInstance{IDBlock: inputType})
	broken := f.addBlock(t, &models.BlockInstance{
		IDBlock:     brokenType,
		Connections: fmt.Sprintf(`{"image":%d}`, input),
		OutputValue: `{"only":"x"}`,
	})

	u := f.addUpload(t, "a.png", "pixels")
	_, err := f.eval.ResultOf(context.Background(), broken, u)
	assert.ErrorIs(t, err, models.ErrBadTemplate)
	assert.Zero(t, f.cacheRowCount(t), "failed evaluation must not insert cache rows")

	entries, readErr := os.ReadDir(f.images.CachedDir())
	require.NoError(t, readErr)
	assert.Empty(t, entries, "failed evaluation must not leave derived files")
}

func TestToggleEnabled(t *testing.T) {
	// Input → Invert → Blur, where Blur is the terminal general block.
	setup := func(t *testing.T, f *fixture) (invert, blur uint) {
		counter := f.images.Root() + "/runs"
		inputType := f.addType(t, &models.BlockType{Name: models.BlockNameInput, Outputs: strPtr(`["image"]`)})
		invertType := f.addType(t, &models.BlockType{
			Name:      "Invert",
			Command:   copyScript(t, counter),
			GUIFields: `[]`,
			Outputs:   strPtr(`["image"]`),
		})
		blurType := f.addType(t, &models.BlockType{
			Name:      "Blur",
			Command:   copyScript(t, counter),
			GUIFields: `[]`,
		})

		input := f.addBlock(t, &models.BlockInstance{IDBlock: inputType})
		invert = f.addBlock(t, &models.BlockInstance{
			IDBlock:     invertType,
			Connections: fmt.Sprintf(`{"image":%d}`, input),
		})
		blur = f.addBlock(t, &models.BlockInstance{
			IDBlock:     blurType,
			Connections: fmt.Sprintf(`{"image":%d}`, invert),
		})
		return invert, blur
	}

	t.Run("DisableDeletesDownstreamClosureFilesAndRows", func(t *testing.T) {
		f := newFixture(t)
		invert, blur := setup(t, f)
		u := f.addUpload(t, "a.png", "pixels")

		out, err := f.eval.ResultOf(context.Background(), blur, u)
		require.NoError(t, err)
		assert.EqualValues(t, 2, f.cacheRowCount(t))

		newState, err := f.inv.ToggleEnabled(context.Background(), invert)
		require.NoError(t, err)
		assert.False(t, newState)

		assert.Zero(t, f.cacheRowCount(t))
		assert.False(t, imagestore.Exists(f.images.CachedPath(out)))
		entries, err := os.ReadDir(f.images.CachedDir())
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("DisabledBlockThenActsAsIdentity", func(t *testing.T) {
		f := newFixture(t)
		invert, blur := setup(t, f)
		u := f.addUpload(t, "a.png", "pixels")

		_, err := f.eval.ResultOf(context.Background(), blur, u)
		require.NoError(t, err)

		_, err = f.inv.ToggleEnabled(context.Background(), invert)
		require.NoError(t, err)

		out, err := f.eval.ResultOf(context.Background(), blur, u)
		require.NoError(t, err)
		// Blur re-executes against the pass-through input.
		assert.EqualValues(t, 1, f.cacheRowCount(t))
		assert.True(t, imagestore.Exists(f.images.CachedPath(out)))
	})

	t.Run("EnableInvalidatesNothing", func(t *testing.T) {
		f := newFixture(t)
		invert, blur := setup(t, f)
		u := f.addUpload(t, "a.png", "pixels")

		_, err := f.inv.ToggleEnabled(context.Background(), invert)
		require.NoError(t, err)

		out, err := f.eval.ResultOf(context.Background(), blur, u)
		require.NoError(t, err)

		newState, err := f.inv.ToggleEnabled(context.Background(), invert)
		require.NoError(t, err)
		assert.True(t, newState)
		assert.True(t, imagestore.Exists(f.images.CachedPath(out)))
		assert.EqualValues(t, 1, f.cacheRowCount(t))
	})

	t.Run("UnknownBlockFails", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.inv.ToggleEnabled(context.Background(), 9999)
		assert.ErrorIs(t, err, models.ErrBlockNotFound)
	})
}
